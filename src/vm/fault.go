package vm

import (
	"defs"

	"clock"
	"mem"
	"proc"
)

/// Fault resolves a page fault at va for pid (spec.md §4.3). It returns 0
/// on success, or a non-zero Err_t on INVALID_VA or IO_FAIL. A failed fault
/// never mutates pager state.
func (h *Handler) Fault(pid int, va uintptr, writeFlag bool) defs.Err_t {
	h.Stats.Faults.Inc()
	pcb, ok := h.Procs.Get(pid)
	if !ok {
		return defs.EINVALVA
	}
	vpn, ok := h.Space.VPN(va)
	if !ok || !pcb.DiskInfo[vpn].Valid {
		return defs.EINVALVA
	}
	pte := &pcb.PageTable[vpn]
	d := &pcb.DiskInfo[vpn]

	switch {
	case d.FileBacked && !pte.Read:
		return h.faultFileBacked(pid, vpn, d)
	case pte.Read && !pte.Write:
		return h.faultCOWResident(pid, vpn, pte, d)
	case !pte.Read && !d.FileBacked:
		return h.faultSwapNonresident(pid, vpn, pte, d, writeFlag)
	default:
		// (d) Already resident with full permissions: benign, can occur
		// after a read fault followed by a write fault on the same page.
		return 0
	}
}

// allocFrame wraps clock.GetFreeFrame with the handler's diagnostics
// counters (stats.Enabled gates whether they actually accumulate).
func (h *Handler) allocFrame() (int, bool, defs.Err_t) {
	f, fromEvict, err := clock.GetFreeFrame(h.Frames, h.Procs, h.Files, h.IO, h.Physmem)
	if fromEvict && err == 0 {
		h.Stats.Evictions.Inc()
	}
	return f, fromEvict, err
}

// faultFileBacked implements path (a): a file-backed page not currently
// resident, or re-faulting after eviction (spec.md §4.3a). If the block is
// already cached in a frame, pid's page is mapped onto that frame and the
// block is not read again.
func (h *Handler) faultFileBacked(pid, vpn int, d *proc.DiskInfo) defs.Err_t {
	if e, ok := h.Files.Get(d.Filename, d.Block); ok && e.PPN != 0 {
		pcb, _ := h.Procs.Get(pid)
		pcb.PageTable[vpn] = mem.PTE{Ppage: e.PPN, Read: true, Write: true}
		h.Frames.AddSharer(e.PPN, pid, vpn)
		return 0
	}
	f, fromEvict, err := h.allocFrame()
	if err != 0 {
		return err
	}
	if rerr := h.IO.ReadBlock(d.Filename, d.Block, h.Physmem.Page(f)); rerr != 0 {
		h.Frames.Free(f)
		h.Stats.IOFails.Inc()
		return defs.EIOFAIL
	}
	h.Stats.PageIns.Inc()

	entry := h.Files.GetOrCreate(d.Filename, d.Block)
	entry.PPN = f
	fr := h.Frames.Frame(f)
	fr.FileBacked = true
	fr.Block = d.Block
	fr.Filename = d.Filename
	fr.Ref = false
	fr.Dirty = false
	for _, s := range entry.Sharers {
		spcb, ok := h.Procs.Get(s.Pid)
		if !ok {
			continue
		}
		spcb.PageTable[s.Vpn] = mem.PTE{Ppage: f, Read: true, Write: true}
		h.Frames.AddSharer(f, s.Pid, s.Vpn)
	}
	if fromEvict {
		h.Frames.PushClockBack(f)
	}
	return 0
}

// faultCOWResident implements path (b): the first write fault on a
// swap-backed page still resident and shared read-only after fork
// (spec.md §4.3b).
func (h *Handler) faultCOWResident(pid, vpn int, pte *mem.PTE, d *proc.DiskInfo) defs.Err_t {
	oldFrame := pte.Ppage
	old := h.Frames.Frame(oldFrame)
	for _, s := range old.Sharers {
		if spcb, ok := h.Procs.Get(s.Pid); ok {
			spcb.PageTable[s.Vpn].Referenced = true
		}
	}
	return h.splitForWrite(pid, vpn, oldFrame, d)
}

// faultSwapNonresident implements path (c): a swap-backed page not
// currently resident (spec.md §4.3c). When the block is still shared with
// siblings and writeFlag is set, it falls through into the same
// copy-on-write split as path (b).
func (h *Handler) faultSwapNonresident(pid, vpn int, pte *mem.PTE, d *proc.DiskInfo, writeFlag bool) defs.Err_t {
	f, fromEvict, err := h.allocFrame()
	if err != 0 {
		return err
	}
	if rerr := h.IO.ReadBlock("", d.Block, h.Physmem.Page(f)); rerr != 0 {
		h.Frames.Free(f)
		h.Stats.IOFails.Inc()
		return defs.EIOFAIL
	}
	h.Stats.PageIns.Inc()
	nf := h.Frames.Frame(f)
	nf.FileBacked = false
	nf.Block = d.Block
	nf.Filename = ""
	nf.Ref = false
	nf.Dirty = false

	if h.Swap.SharerCount(d.Block) > 1 {
		for _, sp := range h.Swap.Sharers(d.Block) {
			spcb, ok := h.Procs.Get(sp)
			if !ok {
				continue
			}
			spcb.PageTable[vpn] = mem.PTE{Ppage: f, Read: true, Write: false}
			h.Frames.AddSharer(f, sp, vpn)
		}
		if fromEvict {
			h.Frames.PushClockBack(f)
		}
		if writeFlag {
			return h.splitForWrite(pid, vpn, f, d)
		}
		return 0
	}

	*pte = mem.PTE{Ppage: f, Read: true, Write: true}
	h.Frames.AddSharer(f, pid, vpn)
	if fromEvict {
		h.Frames.PushClockBack(f)
	}
	return 0
}

// splitForWrite allocates a fresh frame for pid's vpn, copies oldFrame's
// content into it, detaches pid from oldFrame's sharer set (granting the
// lone remaining sharer write permission if exactly one is left), and
// reserves a fresh swap block if the old one is still shared (spec.md
// §4.3b steps 2-5). Both path (b) and the write-triggering branch of path
// (c) reduce to this once their own setup is done.
func (h *Handler) splitForWrite(pid, vpn, oldFrame int, d *proc.DiskInfo) defs.Err_t {
	f, fromEvict, err := h.allocFrame()
	if err != 0 {
		return err
	}
	copy(h.Physmem.Page(f), h.Physmem.Page(oldFrame))

	// Resolve the swap-block reservation before touching any sharer set,
	// so a failure here (which swap_reserved's pessimistic fork-time
	// charge should make impossible, but is checked anyway) leaves
	// oldFrame's sharers and the caller's PTE exactly as found.
	newBlock := d.Block
	if h.Swap.SharerCount(d.Block) > 1 {
		// The diverging block is already charged to pid's swap_reserved by
		// fork's re-charge, so hand that unit back before Reserve takes it:
		// the split leaves availability unchanged.
		h.Swap.Credit(1)
		nb, rerr := h.Swap.Reserve()
		if rerr != 0 {
			h.Swap.Take(1)
			h.Frames.Free(f)
			return defs.ESWAPFULL
		}
		h.Swap.RemoveSharer(d.Block, pid)
		h.Swap.AddSharer(nb, pid)
		newBlock = nb
	}
	d.Block = newBlock

	if remaining := h.Frames.RemoveSharer(oldFrame, pid, vpn); remaining == 1 {
		old := h.Frames.Frame(oldFrame)
		lone := old.Sharers[0]
		if lonePcb, ok := h.Procs.Get(lone.Pid); ok {
			lonePcb.PageTable[lone.Vpn].Write = true
		}
	}

	pcb, _ := h.Procs.Get(pid)
	pcb.PageTable[vpn] = mem.PTE{Ppage: f, Read: true, Write: true}
	nf := h.Frames.Frame(f)
	nf.FileBacked = false
	nf.Block = newBlock
	nf.Filename = ""
	nf.Sharers = []mem.Sharer{{Pid: pid, Vpn: vpn}}
	nf.Ref = false
	nf.Dirty = false
	if fromEvict {
		h.Frames.PushClockBack(f)
	}
	return 0
}
