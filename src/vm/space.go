// Package vm is the pager's address-translation and fault-handling layer:
// it walks virtual addresses within a process's arena, and implements the
// four-path fault handler that pulls pages in from swap or file-backed
// storage (spec.md §4.3, §4.4). Unlike the teacher's own vm package — a
// full pmap/vmregion address space with mmap-style regions — this one
// serves a single flat arena per process, so there is no region lookup,
// no page table walk, and no pmap lock: translation is one division and
// one bounds check.
package vm

import (
	"findex"
	"mem"
	"proc"
	"stats"
	"swap"
	"util"
)

// Space holds the arena layout constants every translation is relative
// to, all derived from runtime-provided values (spec.md §3).
type Space struct {
	Base    uintptr
	NVPages int
}

/// NewSpace builds a Space from the host's arena base and size,
/// rounding size down to a whole number of pages (spec.md §3: N_VPAGES =
/// ARENA_SIZE / PAGESIZE).
func NewSpace(base uintptr, size int) Space {
	pages := util.Rounddown(size, mem.PAGESIZE) / mem.PAGESIZE
	return Space{Base: base, NVPages: pages}
}

/// VPN returns the virtual page number for va, and whether va lies within
/// the arena at all (spec.md §4.3's INVALID_VA bounds check).
func (s Space) VPN(va uintptr) (vpn int, ok bool) {
	if va < s.Base {
		return 0, false
	}
	off := va - s.Base
	vpn = int(off / mem.PAGESIZE)
	if vpn >= s.NVPages {
		return 0, false
	}
	return vpn, true
}

/// PageBase returns the arena address of vpn's first byte, the value
/// map() returns to the caller (spec.md §4.5 map, closing step).
func (s Space) PageBase(vpn int) uintptr {
	return s.Base + uintptr(vpn)*mem.PAGESIZE
}

// Handler bundles the collaborators the fault handler and address
// translation need: the frame table, process table, swap allocator,
// file-backed index, and the host's I/O and physical-memory windows.
type Handler struct {
	Space   Space
	Frames  *mem.Table
	Procs   *proc.Table
	Swap    *swap.Allocator
	Files   *findex.Index
	IO      mem.FileIO
	Physmem mem.Physmem
	Stats   Counters
}

// Counters are disabled-by-default fault-handler diagnostics, following
// the teacher's own Stats-gated counter convention (stats.Enabled).
type Counters struct {
	Faults    stats.Counter_t
	Evictions stats.Counter_t
	PageIns   stats.Counter_t
	IOFails   stats.Counter_t
}

/// String renders the counters, empty unless stats.Enabled is flipped on.
func (c Counters) String() string {
	return stats.String2(c)
}
