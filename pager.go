// Package pager implements a user-space demand-paging virtual memory
// manager: it partitions a host-provided physical memory region among
// client processes, each seeing a flat arena of virtual pages, and
// services faults by pulling pages in from swap or from file-backed
// storage, sharing and copying pages across fork and reclaiming frames
// via a clock replacement policy.
package pager

import (
	"defs"

	"findex"
	"mem"
	"proc"
	"swap"
	"vm"
)

// Pager owns every piece of state the six entry points operate on: the
// frame table, the swap allocator, the file-backed index, the process
// table, and the currently switched-in process. The host runtime invokes
// exactly one entry point at a time and entry points run to completion
// without suspending (spec.md §5) — Pager carries no locks.
type Pager struct {
	handler *vm.Handler
	procs   *proc.Table
	current int
	haveCur bool
}

// Config describes the host-provided resources a Pager partitions:
// arena layout, physical frame count, swap size, and the two
// collaborators (FileIO and Physmem) the pager never implements itself.
type Config struct {
	ArenaBase   uintptr
	ArenaSize   int
	MemoryPages int
	SwapBlocks  int
	IO          mem.FileIO
	Physmem     mem.Physmem
}

/// New builds a Pager and performs spec.md §4.5's init(memory_pages,
/// swap_blocks): frame 0 is zeroed and pinned, open_frames becomes
/// {1..memory_pages-1}, and the swap allocator starts with every block
/// open and fully available.
func New(cfg Config) *Pager {
	procs := proc.NewTable()
	space := vm.NewSpace(cfg.ArenaBase, cfg.ArenaSize)
	return &Pager{
		procs: procs,
		handler: &vm.Handler{
			Space:   space,
			Frames:  mem.NewTable(cfg.MemoryPages, cfg.Physmem),
			Procs:   procs,
			Swap:    swap.NewAllocator(cfg.SwapBlocks),
			Files:   findex.NewIndex(),
			IO:      cfg.IO,
			Physmem: cfg.Physmem,
		},
	}
}

/// Diagnostics renders the fault handler's counters (empty unless
/// stats.Enabled is flipped on), the way the teacher prints its own
/// Stats-gated counters for debugging.
func (p *Pager) Diagnostics() string {
	return p.handler.Stats.String()
}

/// Fault resolves a page fault at va for the current process with the
/// given write flag. Returns 0 on success, or the specific Err_t on
/// INVALID_VA or IO_FAIL (spec.md §4.3). A failed fault never mutates
/// pager state.
func (p *Pager) Fault(va uintptr, write bool) defs.Err_t {
	if !p.haveCur {
		return defs.EINVALVA
	}
	return p.handler.Fault(p.current, va, write)
}
