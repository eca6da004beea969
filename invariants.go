package pager

import (
	"fmt"

	"mem"
	"proc"
)

// checkInvariants walks every piece of state and returns a description of
// each §8 invariant it finds violated (empty if none). Grounded on
// original_source/pager_utils.h's check_states(); used by tests, never by
// the six entry points themselves.
func (p *Pager) checkInvariants() []string {
	var violations []string
	note := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	frames := p.handler.Frames
	swp := p.handler.Swap
	files := p.handler.Files

	// Every resident (pid, vpn) with read_enable appears in exactly one
	// frame's sharers, at the frame its own PTE names. Mappings of the zero
	// frame are not resident: that frame never records sharers.
	p.procs.Each(func(pid int, pcb *proc.PCB) {
		for vpn, pte := range pcb.PageTable {
			if !pte.Read || pte.Ppage == mem.ZeroFrame {
				continue
			}
			count := 0
			for i := range frames.Frames {
				for _, s := range frames.Frames[i].Sharers {
					if s.Pid == pid && s.Vpn == vpn {
						count++
						if i != pte.Ppage {
							note("pid %d vpn %d: PTE names frame %d but sharer entry found on frame %d", pid, vpn, pte.Ppage, i)
						}
					}
				}
			}
			if count != 1 {
				note("pid %d vpn %d: read_enable set but appears in %d frame sharer sets (want 1)", pid, vpn, count)
			}
		}
	})

	// Every file-backed valid DiskInfo appears exactly once in its
	// (filename, block) sharer set.
	p.procs.Each(func(pid int, pcb *proc.PCB) {
		for vpn, d := range pcb.DiskInfo {
			if !d.Valid || !d.FileBacked {
				continue
			}
			e, ok := files.Get(d.Filename, d.Block)
			if !ok {
				note("pid %d vpn %d: file-backed DiskInfo %s[%d] has no index entry", pid, vpn, d.Filename, d.Block)
				continue
			}
			count := 0
			for _, s := range e.Sharers {
				if s.Pid == pid && s.Vpn == vpn {
					count++
				}
			}
			if count != 1 {
				note("pid %d vpn %d: %s[%d] sharer set contains it %d times (want 1)", pid, vpn, d.Filename, d.Block, count)
			}
		}
	})

	// Every swap-backed valid DiskInfo's pid appears in swap_file[block].
	p.procs.Each(func(pid int, pcb *proc.PCB) {
		for _, d := range pcb.DiskInfo {
			if !d.Valid || d.FileBacked {
				continue
			}
			found := false
			for _, sp := range swp.Sharers(d.Block) {
				if sp == pid {
					found = true
					break
				}
			}
			if !found {
				note("pid %d: swap-backed block %d's sharer set does not include this pid", pid, d.Block)
			}
		}
	})

	// open_frames and clock_queue are disjoint and cover {1..max-1}; frame
	// 0 is in neither. Table's Alloc/Free/PopClockFront/PushClockBack keep
	// every non-zero frame in exactly one of the two sets by construction,
	// so only the totals need checking here.
	if got, want := frames.OpenLen()+frames.ClockLen(), frames.Len()-1; got != want {
		note("open_frames(%d) + clock_queue(%d) = %d, want %d", frames.OpenLen(), frames.ClockLen(), got, want)
	}

	// num_swap_available + Σ pcb.swap_reserved == swap_blocks.
	total := swp.Available()
	p.procs.Each(func(pid int, pcb *proc.PCB) {
		total += pcb.SwapReserved
	})
	if total != swp.NumBlocks() {
		note("swap accounting: available(%d) + Σswap_reserved = %d, want swap_blocks(%d)", swp.Available(), total, swp.NumBlocks())
	}

	// A swap-backed frame with a single sharer whose block is not further
	// shared has write_enable=1 on that sharer's PTE.
	for i := range frames.Frames {
		f := &frames.Frames[i]
		if f.FileBacked || f.Block == -1 || len(f.Sharers) != 1 {
			continue
		}
		if swp.SharerCount(f.Block) != 1 {
			continue
		}
		s := f.Sharers[0]
		pcb, ok := p.procs.Get(s.Pid)
		if !ok {
			continue
		}
		if !pcb.PageTable[s.Vpn].Write {
			note("frame %d: sole swap sharer (pid %d, vpn %d) lacks write_enable", i, s.Pid, s.Vpn)
		}
	}

	return violations
}
