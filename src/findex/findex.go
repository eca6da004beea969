// Package findex is the file-backed index (spec.md §3, §4.3a, §4.5 map):
// a mapping from filename to block to the frame currently caching that
// block, plus the set of (pid, vpn) sharers mapped onto it. Unlike the
// teacher's lock-free hashtable package, this index needs no concurrent
// bucket chaining or atomic pointer swaps — the pager is single-threaded
// (spec.md §5) — so a plain nested map suffices.
package findex

import (
	"strconv"

	"mem"
)

// Entry is one (filename, block)'s index record. PPN is 0 while the block
// is non-resident (0 doubles as "the zero frame" and "not cached", which
// is safe here because the zero frame is never file-backed). Sharers is
// the ordered multiset of every (pid, vpn) with a file-backed DiskInfo
// naming this (filename, block), independent of whether it is resident.
type Entry struct {
	PPN     int
	Sharers []mem.Sharer
}

// Index is the file-backed index. Entries are created lazily on first
// reference and are never removed, even once their sharer set empties:
// spec.md's Open Question (1) says the source never garbage-collects
// empty entries, and that behavior is retained here.
type Index struct {
	files map[string]map[int]*Entry
}

/// NewIndex builds an empty file-backed index.
func NewIndex() *Index {
	return &Index{files: make(map[string]map[int]*Entry)}
}

/// Get returns the entry for (filename, block), or (nil, false) if no
/// reference has ever been made to it.
func (x *Index) Get(filename string, block int) (*Entry, bool) {
	blocks, ok := x.files[filename]
	if !ok {
		return nil, false
	}
	e, ok := blocks[block]
	return e, ok
}

/// GetOrCreate returns the entry for (filename, block), creating an empty,
/// non-resident one (PPN 0, no sharers) on first reference.
func (x *Index) GetOrCreate(filename string, block int) *Entry {
	blocks, ok := x.files[filename]
	if !ok {
		blocks = make(map[int]*Entry)
		x.files[filename] = blocks
	}
	e, ok := blocks[block]
	if !ok {
		e = &Entry{}
		blocks[block] = e
	}
	return e
}

/// AddSharer appends (pid, vpn) to (filename, block)'s sharer set,
/// creating the entry if needed (spec.md §4.5 map, §4.5 create fork).
func (x *Index) AddSharer(filename string, block, pid, vpn int) {
	e := x.GetOrCreate(filename, block)
	e.Sharers = append(e.Sharers, mem.Sharer{Pid: pid, Vpn: vpn})
}

/// RemoveSharer removes the first (pid, vpn) entry from (filename,
/// block)'s sharer set, if present (spec.md §4.5 destroy step 3). It does
/// not delete the entry even if the sharer set becomes empty.
func (x *Index) RemoveSharer(filename string, block, pid, vpn int) {
	blocks, ok := x.files[filename]
	if !ok {
		return
	}
	e, ok := blocks[block]
	if !ok {
		return
	}
	for i, s := range e.Sharers {
		if s.Pid == pid && s.Vpn == vpn {
			e.Sharers = append(e.Sharers[:i], e.Sharers[i+1:]...)
			return
		}
	}
}

/// SetResident marks (filename, block) as cached at frame ppn (spec.md
/// §4.3a: "Set file_index[d.filename][d.block].ppn = f").
func (x *Index) SetResident(filename string, block, ppn int) {
	x.GetOrCreate(filename, block).PPN = ppn
}

/// ClearResident marks (filename, block) non-resident again, forcing the
/// next reference to re-fault (spec.md §4.2 step 5, eviction).
func (x *Index) ClearResident(filename string, block int) {
	if e, ok := x.Get(filename, block); ok {
		e.PPN = 0
	}
}

/// Each calls fn once per (filename, block, entry) triple currently in the
/// index, in no particular order, for callers that must walk the whole
/// index.
func (x *Index) Each(fn func(filename string, block int, e *Entry)) {
	for name, blocks := range x.files {
		for block, e := range blocks {
			fn(name, block, e)
		}
	}
}

/// Dump renders every entry with at least one sharer or a resident frame,
/// for debugging (grounded on original_source/pager_utils.h's
/// print_file_backed_pages()). Returns "" when mem.Trace is off.
func (x *Index) Dump() string {
	if !mem.Trace {
		return ""
	}
	s := ""
	for name, blocks := range x.files {
		for block, e := range blocks {
			if e.PPN == 0 && len(e.Sharers) == 0 {
				continue
			}
			s += "\n\t" + name + "[" + strconv.Itoa(block) + "] -> ppn=" + strconv.Itoa(e.PPN) + " sharers="
			for _, sh := range e.Sharers {
				s += "(" + strconv.Itoa(sh.Pid) + "," + strconv.Itoa(sh.Vpn) + ")"
			}
		}
	}
	return s
}
