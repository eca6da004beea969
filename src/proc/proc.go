// Package proc holds the per-process state the pager tracks: the page
// table, the disk info backing each virtual page, and the process table
// that create/switch/destroy operate on (spec.md §3 PCB, §4.5).
package proc

import "mem"

// DiskInfo records where a virtual page's content lives when it is not
// resident: a swap block when !FileBacked, a (Filename, Block) pair
// otherwise. One entry per virtual page per process (spec.md §3).
type DiskInfo struct {
	Valid      bool
	FileBacked bool
	Filename   string
	Block      int
}

// PCB is a process control block: the page table, the matching disk info
// array, and the bookkeeping create/map/destroy maintain (spec.md §3).
type PCB struct {
	PageTable    []mem.PTE
	DiskInfo     []DiskInfo
	NextVPage    int
	SwapReserved int
}

/// NewPCB allocates an empty PCB sized for nvpages virtual pages, with no
/// valid entries and next_vpage at 0 (spec.md §4.5 create, empty-PCB case).
func NewPCB(nvpages int) *PCB {
	return &PCB{
		PageTable: make([]mem.PTE, nvpages),
		DiskInfo:  make([]DiskInfo, nvpages),
	}
}

/// Clone deep-copies p into a fresh PCB, element-wise over both tables, the
/// way spec.md §4.5 create requires before any per-page fork adjustment.
func (p *PCB) Clone() *PCB {
	c := &PCB{
		PageTable:    make([]mem.PTE, len(p.PageTable)),
		DiskInfo:     make([]DiskInfo, len(p.DiskInfo)),
		NextVPage:    p.NextVPage,
		SwapReserved: p.SwapReserved,
	}
	copy(c.PageTable, p.PageTable)
	copy(c.DiskInfo, p.DiskInfo)
	return c
}

// Table is the pager's process table: every live PCB, keyed by pid.
type Table struct {
	pcbs map[int]*PCB
}

/// NewTable builds an empty process table.
func NewTable() *Table {
	return &Table{pcbs: make(map[int]*PCB)}
}

/// Get returns pid's PCB, or (nil, false) if pid is not in the table.
func (t *Table) Get(pid int) (*PCB, bool) {
	p, ok := t.pcbs[pid]
	return p, ok
}

/// Install adds pcb to the table under pid, replacing any existing entry.
func (t *Table) Install(pid int, pcb *PCB) {
	t.pcbs[pid] = pcb
}

/// Remove deletes pid's PCB from the table (spec.md §4.5 destroy step 5).
func (t *Table) Remove(pid int) {
	delete(t.pcbs, pid)
}

/// Len reports the number of live PCBs, for diagnostics.
func (t *Table) Len() int {
	return len(t.pcbs)
}

/// Each calls fn once per live (pid, PCB) pair, in no particular order, for
/// callers that must walk every process (the invariant checker).
func (t *Table) Each(fn func(pid int, pcb *PCB)) {
	for pid, pcb := range t.pcbs {
		fn(pid, pcb)
	}
}
