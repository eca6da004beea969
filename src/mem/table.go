package mem

import "strconv"

// Frame is one physical frame's metadata: residency, backing, dirty/ref
// state, and the reverse mapping to every PTE that currently points at it.
// Frame 0 gets an entry too (pinned, never evicted, never populates
// Sharers: per spec.md §3/§4.5 no operation ever registers a reverse
// mapping for the shared zero frame, since it is never refreshed, never
// dirtied, and never evicted).
type Frame struct {
	Ref        bool
	Dirty      bool
	FileBacked bool
	Block      int // -1 if none
	Filename   string
	Sharers    []Sharer
}

func freeFrame() Frame {
	return Frame{Block: -1}
}

// Table is the frame allocator: per-frame metadata plus the free-frame set
// and the clock queue of resident, non-pinned frames. Every frame index in
// [1, len) is in exactly one of {open, clock}; frame 0 is in neither.
type Table struct {
	Frames []Frame
	open   map[int]struct{}
	clock  []int
}

/// NewTable builds a frame table for maxPages physical frames, reserving
/// and zeroing frame 0 as the pinned zero frame (spec.md §4.5 init).
func NewTable(maxPages int, physmem Physmem) *Table {
	t := &Table{
		Frames: make([]Frame, maxPages),
		open:   make(map[int]struct{}, maxPages),
	}
	for i := range t.Frames {
		t.Frames[i] = freeFrame()
	}
	if physmem != nil {
		zero := physmem.Page(ZeroFrame)
		for i := range zero {
			zero[i] = 0
		}
	}
	for i := 1; i < maxPages; i++ {
		t.open[i] = struct{}{}
	}
	return t
}

/// Len returns the number of physical frames.
func (t *Table) Len() int {
	return len(t.Frames)
}

/// Frame returns a pointer to frame i's metadata for direct mutation.
func (t *Table) Frame(i int) *Frame {
	return &t.Frames[i]
}

/// Alloc removes any member of the open-frame set, enqueues it onto the
/// clock, and returns it. ok is false if no frame is open (spec.md §4.2
/// get_free_frame step 1); the caller must then run the clock evictor.
func (t *Table) Alloc() (frame int, ok bool) {
	for f := range t.open {
		delete(t.open, f)
		t.clock = append(t.clock, f)
		return f, true
	}
	return 0, false
}

/// PopClockFront removes and returns the frame at the head of the clock
/// queue, used by the evictor's scan (spec.md §4.2 step 2).
func (t *Table) PopClockFront() (frame int, ok bool) {
	if len(t.clock) == 0 {
		return 0, false
	}
	frame = t.clock[0]
	t.clock = t.clock[1:]
	return frame, true
}

/// PushClockBack re-enqueues a frame at the tail of the clock queue.
func (t *Table) PushClockBack(frame int) {
	t.clock = append(t.clock, frame)
}

/// ClockLen reports the number of frames currently on the clock queue.
func (t *Table) ClockLen() int {
	return len(t.clock)
}

/// OpenLen reports the number of frames currently in the open-frame set.
func (t *Table) OpenLen() int {
	return len(t.open)
}

/// Free resets frame i to the free state and returns it to the open set,
/// removing it from the clock queue if present. Used when a swap-backed
/// frame's last sharer departs (destroy, §4.5 step 4) and to roll back a
/// tentative allocation on IO_FAIL (spec.md §5).
func (t *Table) Free(i int) {
	for j, f := range t.clock {
		if f == i {
			t.clock = append(t.clock[:j], t.clock[j+1:]...)
			break
		}
	}
	t.Frames[i] = freeFrame()
	t.open[i] = struct{}{}
}

/// ResetToFree clears frame i's metadata to the free state without
/// touching the open set or clock queue, for the evictor's use: a victim
/// popped off the clock queue is handed straight to the caller rather than
/// round-tripping through open_frames (spec.md §4.2 step 7; the caller
/// re-enqueues it onto the clock once repopulated, per §4.2's closing note).
func (t *Table) ResetToFree(i int) {
	t.Frames[i] = freeFrame()
}

/// AddSharer appends (pid, vpn) to frame i's reverse mapping.
func (t *Table) AddSharer(i, pid, vpn int) {
	t.Frames[i].Sharers = append(t.Frames[i].Sharers, Sharer{Pid: pid, Vpn: vpn})
}

/// RemoveSharer removes the first (pid, vpn) entry from frame i's reverse
/// mapping and returns the remaining sharer count.
func (t *Table) RemoveSharer(i, pid, vpn int) int {
	sh := t.Frames[i].Sharers
	for j, s := range sh {
		if s.Pid == pid && s.Vpn == vpn {
			t.Frames[i].Sharers = append(sh[:j], sh[j+1:]...)
			break
		}
	}
	return len(t.Frames[i].Sharers)
}

/// RemoveSharersByPid strips every sharer entry belonging to pid from every
/// frame (spec.md §4.5 destroy step 4) and returns the indices of
/// non-file-backed frames left with no sharers, which the caller must Free.
func (t *Table) RemoveSharersByPid(pid int) []int {
	var emptied []int
	for i := range t.Frames {
		if i == ZeroFrame {
			continue
		}
		f := &t.Frames[i]
		if len(f.Sharers) == 0 {
			continue
		}
		kept := f.Sharers[:0]
		for _, s := range f.Sharers {
			if s.Pid != pid {
				kept = append(kept, s)
			}
		}
		f.Sharers = kept
		if len(f.Sharers) == 0 && !f.FileBacked {
			emptied = append(emptied, i)
		}
	}
	return emptied
}

/// Dump renders every resident, non-pinned frame's backing and sharer set,
/// gated behind Trace (grounded on original_source/pager_utils.h's
/// print_page_map()). Returns "" when Trace is off.
func (t *Table) Dump() string {
	if !Trace {
		return ""
	}
	s := ""
	for i, f := range t.Frames {
		if i == ZeroFrame || f.Block == -1 {
			continue
		}
		s += "\n\tframe " + strconv.Itoa(i) + ": "
		if f.FileBacked {
			s += f.Filename + "[" + strconv.Itoa(f.Block) + "]"
		} else {
			s += "swap[" + strconv.Itoa(f.Block) + "]"
		}
		if f.Ref {
			s += " ref"
		}
		if f.Dirty {
			s += " dirty"
		}
		s += " sharers="
		for _, sh := range f.Sharers {
			s += "(" + strconv.Itoa(sh.Pid) + "," + strconv.Itoa(sh.Vpn) + ")"
		}
	}
	return s
}
