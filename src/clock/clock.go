// Package clock implements the frame allocator's one-handed clock evictor
// (spec.md §4.2). It reaches across mem, proc, and findex at once:
// eviction must refresh hardware bits from every sharer's
// PTE, write back a dirty victim through the host's FileIO, clear the
// file-backed index entry it vacates, and clear every sharer's PTE.
package clock

import (
	"defs"

	"findex"
	"mem"
	"proc"
)

// GetFreeFrame returns a free physical frame, preferring the open set and
// falling back to eviction (spec.md §4.2 get_free_frame). fromEviction
// reports whether the frame came from eviction: such a frame is detached
// from the clock queue and the caller must push it back on once it has
// repopulated it, per §4.2's closing note. A frame taken from the open set
// is already on the clock queue (step 1 appends it immediately) — the
// asymmetry is the spec's, not an implementation accident.
func GetFreeFrame(frames *mem.Table, procs *proc.Table, files *findex.Index, io mem.FileIO, physmem mem.Physmem) (frame int, fromEviction bool, err defs.Err_t) {
	if f, ok := frames.Alloc(); ok {
		return f, false, 0
	}
	f, err := evict(frames, procs, files, io, physmem)
	return f, true, err
}

/// evict runs the one-handed clock scan and returns the victim frame,
/// detached from the open set and clock queue, its metadata reset to free
/// and every sharer PTE cleared (spec.md §4.2 evict, steps 1-7).
func evict(frames *mem.Table, procs *proc.Table, files *findex.Index, io mem.FileIO, physmem mem.Physmem) (int, defs.Err_t) {
	Refresh(frames, procs)

	victim := selectVictim(frames, procs)
	f := frames.Frame(victim)

	if f.Dirty {
		data := physmem.Page(victim)
		var werr defs.Err_t
		if f.FileBacked {
			werr = io.WriteBlock(f.Filename, f.Block, data)
		} else {
			werr = io.WriteBlock("", f.Block, data)
		}
		if werr != 0 {
			// Leave the victim's state exactly as found and put it back
			// on the clock, per spec.md §5's IO_FAIL ordering guarantee.
			frames.PushClockBack(victim)
			return 0, defs.EIOFAIL
		}
	}
	if f.FileBacked {
		files.ClearResident(f.Filename, f.Block)
	}
	for _, s := range f.Sharers {
		if pcb, ok := procs.Get(s.Pid); ok {
			pcb.PageTable[s.Vpn].Clear()
		}
	}
	frames.ResetToFree(victim)
	return victim, 0
}

// Refresh ORs every sharer PTE's referenced/dirty bit into its frame's
// metadata, since hardware writes those bits to the PTE, never to the
// frame (spec.md §4.2 step 1). Exported because destroy (spec.md §4.5
// step 1) must run the same refresh before any PTE disappears, not only
// the evictor.
func Refresh(frames *mem.Table, procs *proc.Table) {
	for i := 0; i < frames.Len(); i++ {
		if i == mem.ZeroFrame {
			continue
		}
		f := frames.Frame(i)
		for _, s := range f.Sharers {
			pcb, ok := procs.Get(s.Pid)
			if !ok {
				continue
			}
			pte := &pcb.PageTable[s.Vpn]
			if pte.Referenced {
				f.Ref = true
			}
			if pte.Dirty {
				f.Dirty = true
			}
		}
	}
}

// selectVictim runs the FIFO scan with second-chance clearing (spec.md
// §4.2 step 2-3) and returns the chosen frame's index, already popped off
// the clock queue. The loop terminates within |clock_queue|+1 visits: every
// frame's ref bit is cleared on its first pass, so the second pass picks
// whichever is scanned first.
func selectVictim(frames *mem.Table, procs *proc.Table) int {
	for {
		head, ok := frames.PopClockFront()
		if !ok {
			panic("clock queue empty during eviction")
		}
		f := frames.Frame(head)
		if !f.Ref {
			return head
		}
		f.Ref = false
		for _, s := range f.Sharers {
			if pcb, ok := procs.Get(s.Pid); ok {
				pcb.PageTable[s.Vpn].Referenced = false
			}
		}
		frames.PushClockBack(head)
	}
}
