package pager

import (
	"clock"
	"mem"
	"proc"
)

/// Create implements fork (spec.md §4.5 create). If parent is not in the
/// process table, child gets an empty PCB and Create returns true. If
/// parent exists, its page table and disk info are deep-copied to child
/// element-wise, every swap-backed page is marked copy-on-write and every
/// file-backed page gains child as a sharer. Create returns false only
/// when parent's swap_reserved would exceed the swap allocator's
/// available budget.
func (p *Pager) Create(parent, child int) bool {
	ppcb, ok := p.procs.Get(parent)
	if !ok {
		p.procs.Install(child, proc.NewPCB(p.handler.Space.NVPages))
		return true
	}
	if !p.handler.Swap.Take(ppcb.SwapReserved) {
		return false
	}

	cpcb := ppcb.Clone()
	p.procs.Install(child, cpcb)

	for vpn := range ppcb.DiskInfo {
		d := &cpcb.DiskInfo[vpn]
		if !d.Valid {
			continue
		}
		if d.FileBacked {
			p.handler.Files.AddSharer(d.Filename, d.Block, child, vpn)
			if ppcb.PageTable[vpn].Read && ppcb.PageTable[vpn].Ppage != mem.ZeroFrame {
				ppn := ppcb.PageTable[vpn].Ppage
				p.handler.Frames.AddSharer(ppn, child, vpn)
			}
			continue
		}

		p.handler.Swap.AddSharer(d.Block, child)
		ppcb.PageTable[vpn].Write = false
		cpcb.PageTable[vpn].Write = false
		if ppcb.PageTable[vpn].Read && ppcb.PageTable[vpn].Ppage != mem.ZeroFrame {
			ppn := ppcb.PageTable[vpn].Ppage
			p.handler.Frames.AddSharer(ppn, child, vpn)
		}
	}
	return true
}

/// Switch rebinds the current process to pid (spec.md §4.5 switch). The
/// PCB must already exist in the process table.
func (p *Pager) Switch(pid int) bool {
	if _, ok := p.procs.Get(pid); !ok {
		return false
	}
	p.current = pid
	p.haveCur = true
	return true
}

/// Destroy tears down the current process (spec.md §4.5 destroy): it
/// refreshes reference/dirty bits, credits swap_reserved back to the
/// allocator, releases every swap and file-backed page the process held,
/// clears every PTE, strips the process from every frame's sharer set,
/// and removes its PCB.
func (p *Pager) Destroy() {
	if !p.haveCur {
		return
	}
	pid := p.current
	pcb, ok := p.procs.Get(pid)
	if !ok {
		return
	}

	clock.Refresh(p.handler.Frames, p.procs)
	p.handler.Swap.Credit(pcb.SwapReserved)

	for vpn := range pcb.DiskInfo {
		d := &pcb.DiskInfo[vpn]
		if !d.Valid {
			continue
		}
		if d.FileBacked {
			p.handler.Files.RemoveSharer(d.Filename, d.Block, pid, vpn)
		} else {
			p.handler.Swap.RemoveSharer(d.Block, pid)
			if sole, ok := p.handler.Swap.SoleSharer(d.Block); ok {
				grantSoleWriter(p.procs, sole, d.Block)
			}
		}
		pcb.PageTable[vpn].Clear()
	}

	for _, f := range p.handler.Frames.RemoveSharersByPid(pid) {
		p.handler.Frames.Free(f)
	}

	p.procs.Remove(pid)
	p.haveCur = false
}

/// Map allocates the process's next virtual page (spec.md §4.5 map). When
/// filenameVA is 0 the page is anonymous and swap-backed, reserving a
/// fresh swap block and pointing the PTE at the zero frame until the
/// first write. Otherwise filenameVA addresses a null-terminated filename
/// within the caller's own arena (§4.4); if (filename, block) is already
/// resident the new PTE points straight at that frame and gains full
/// permissions, else it faults in on first access. Map returns the base
/// address of the new page, or ok=false if the arena is full, the swap
/// allocator is exhausted, or the filename could not be read.
func (p *Pager) Map(filenameVA uintptr, block int) (addr uintptr, ok bool) {
	if !p.haveCur {
		return 0, false
	}
	pid := p.current
	pcb, _ := p.procs.Get(pid)
	vpn := pcb.NextVPage
	if vpn >= len(pcb.PageTable) {
		return 0, false
	}

	if filenameVA == 0 {
		b, err := p.handler.Swap.Reserve()
		if err != 0 {
			return 0, false
		}
		p.handler.Swap.AddSharer(b, pid)
		pcb.DiskInfo[vpn] = proc.DiskInfo{Valid: true, FileBacked: false, Block: b}
		pcb.PageTable[vpn] = mem.PTE{Ppage: mem.ZeroFrame, Read: true}
		pcb.SwapReserved++
	} else {
		name, terr := p.handler.TranslateFilename(pid, filenameVA)
		if terr != 0 {
			return 0, false
		}
		entry := p.handler.Files.GetOrCreate(name, block)
		entry.Sharers = append(entry.Sharers, mem.Sharer{Pid: pid, Vpn: vpn})
		if entry.PPN != 0 {
			pcb.PageTable[vpn] = mem.PTE{Ppage: entry.PPN, Read: true, Write: true}
			p.handler.Frames.AddSharer(entry.PPN, pid, vpn)
		} else {
			pcb.PageTable[vpn] = mem.PTE{}
		}
		pcb.DiskInfo[vpn] = proc.DiskInfo{Valid: true, FileBacked: true, Filename: name, Block: block}
	}

	pcb.NextVPage++
	return p.handler.Space.PageBase(vpn), true
}

// grantSoleWriter grants write permission to block's one remaining
// sharer, if its PTE is resident with a non-zero frame (spec.md §4.5
// destroy step 3's swap-backed case).
func grantSoleWriter(procs *proc.Table, pid, block int) {
	pcb, ok := procs.Get(pid)
	if !ok {
		return
	}
	for vpn := range pcb.DiskInfo {
		d := &pcb.DiskInfo[vpn]
		if d.Valid && !d.FileBacked && d.Block == block {
			pte := &pcb.PageTable[vpn]
			if pte.Read && pte.Ppage != mem.ZeroFrame {
				pte.Write = true
			}
		}
	}
}
