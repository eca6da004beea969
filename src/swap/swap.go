// Package swap is the swap-block allocator (spec.md §4.1): it tracks which
// blocks are free, which pids share each in-use block, and how many blocks
// remain available for new reservations.
package swap

import "defs"

// Counter tracks remaining capacity the way the teacher's
// limits.Sysatomic_t tracks a system-wide resource limit: Taken fails
// cleanly instead of going negative, Given restores capacity. The pager
// runs single-threaded (spec.md §5) so, unlike Sysatomic_t, this needs no
// atomic add.
type Counter int

/// Taken decrements the counter by n if enough remains; it reports
/// whether the decrement succeeded.
func (c *Counter) Taken(n int) bool {
	if int(*c) < n {
		return false
	}
	*c -= Counter(n)
	return true
}

/// Given restores n units of capacity.
func (c *Counter) Given(n int) {
	*c += Counter(n)
}

/// Allocator is the swap-block allocator. swap_file[b] is non-empty iff b
/// is not in the open set. available is the virtual admission-control
/// budget, not a count of open blocks: Reserve charges it in lockstep with
/// popping a real block, but Take (fork's pessimistic re-charge) can charge
/// it against blocks that remain physically open. The global invariant
/// num_swap_available + Σ pcb.swap_reserved == swap_blocks holds because
/// every Reserve/Take charge is mirrored by exactly one increment of some
/// PCB's swap_reserved field, and every Credit by a decrement (§3, §4.1).
type Allocator struct {
	blocks    []map[int]bool // sharer sets, keyed by pid
	open      map[int]bool
	available Counter
}

/// NewAllocator builds an allocator over numBlocks swap blocks, all free.
func NewAllocator(numBlocks int) *Allocator {
	a := &Allocator{
		blocks:    make([]map[int]bool, numBlocks),
		open:      make(map[int]bool, numBlocks),
		available: Counter(numBlocks),
	}
	for i := 0; i < numBlocks; i++ {
		a.open[i] = true
	}
	return a
}

/// NumBlocks returns the total number of swap blocks.
func (a *Allocator) NumBlocks() int {
	return len(a.blocks)
}

/// Available reports the number of unreserved swap blocks.
func (a *Allocator) Available() int {
	return int(a.available)
}

/// Reserve charges one unit of availability and returns any open block, or
/// ESWAPFULL if no availability remains. Availability, not the open set, is
/// the gating resource: a fork's pessimistic re-charge (Take) can exhaust
/// availability while physical blocks are still open, reserving headroom
/// against a child's future COW divergence (spec.md §4.1, §4.5 create).
/// Reserving a block does not add a sharer; callers must AddSharer
/// separately, since the swap_reserved accounting lives on the PCB (§3).
func (a *Allocator) Reserve() (block int, err defs.Err_t) {
	if !a.available.Taken(1) {
		return 0, defs.ESWAPFULL
	}
	for b := range a.open {
		delete(a.open, b)
		a.blocks[b] = make(map[int]bool)
		return b, 0
	}
	panic("available accounting out of sync with open block set")
}

/// Take charges n blocks' worth of availability to an accounting pool
/// (e.g. a PCB's swap_reserved) without allocating any block itself —
/// used by fork's pessimistic re-charge (spec.md §4.1, §4.5 create).
func (a *Allocator) Take(n int) bool {
	return a.available.Taken(n)
}

/// Credit returns n blocks' worth of availability, the counterpart to
/// Take, used when a process is destroyed (spec.md §4.5 destroy step 2).
func (a *Allocator) Credit(n int) {
	a.available.Given(n)
}

/// AddSharer adds pid to block's sharer set.
func (a *Allocator) AddSharer(block, pid int) {
	a.blocks[block][pid] = true
}

/// RemoveSharer removes pid from block's sharer set. If the set becomes
/// empty the block is returned to the open set (spec.md §4.1 release).
func (a *Allocator) RemoveSharer(block, pid int) {
	delete(a.blocks[block], pid)
	if len(a.blocks[block]) == 0 {
		a.blocks[block] = nil
		a.open[block] = true
	}
}

/// Sharers returns every pid currently sharing block, for the fault
/// handler's swap-backed non-resident path, which must map every sibling
/// sharing a block onto the frame it just populated (spec.md §4.3c).
func (a *Allocator) Sharers(block int) []int {
	pids := make([]int, 0, len(a.blocks[block]))
	for p := range a.blocks[block] {
		pids = append(pids, p)
	}
	return pids
}

/// SharerCount reports how many pids currently share block.
func (a *Allocator) SharerCount(block int) int {
	return len(a.blocks[block])
}

/// SoleSharer returns the single remaining sharer of block and true, or
/// (0, false) if block is shared by zero or more than one pid.
func (a *Allocator) SoleSharer(block int) (pid int, ok bool) {
	if len(a.blocks[block]) != 1 {
		return 0, false
	}
	for p := range a.blocks[block] {
		return p, true
	}
	panic("unreachable")
}
