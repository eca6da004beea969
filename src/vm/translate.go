package vm

import (
	"defs"

	"mem"
	"ustr"
)

/// TranslateFilename reads a null-terminated filename out of pid's arena
/// starting at va, faulting in any page that is not yet readable (spec.md
/// §4.4). It returns BAD_FILENAME if va ever falls outside the arena or a
/// fault along the way fails.
func (h *Handler) TranslateFilename(pid int, va uintptr) (string, defs.Err_t) {
	s := ustr.MkUstr()
	cur := va
	for {
		b, err := h.readByte(pid, cur)
		if err != 0 {
			return "", defs.EBADFILENAME
		}
		if b == 0 {
			return s.String(), 0
		}
		s = append(s, b)
		cur++
	}
}

// readByte resolves the single byte at va, faulting its page in first if
// necessary (spec.md §4.4: "If ... the first byte of a page has
// read_enable == 0, invoke fault(va, write=false) to page it in").
func (h *Handler) readByte(pid int, va uintptr) (byte, defs.Err_t) {
	pcb, ok := h.Procs.Get(pid)
	if !ok {
		return 0, defs.EINVALVA
	}
	vpn, ok := h.Space.VPN(va)
	if !ok {
		return 0, defs.EINVALVA
	}
	if !pcb.PageTable[vpn].Read {
		if ferr := h.Fault(pid, va, false); ferr != 0 {
			return 0, ferr
		}
	}
	frame := pcb.PageTable[vpn].Ppage
	off := int((va - h.Space.Base) % mem.PAGESIZE)
	return h.Physmem.Page(frame)[off], 0
}
