// Package mem is the pager's leaf package: the hardware-style PTE layout,
// the host collaborator interfaces, and the frame table that tracks every
// physical frame's backing and reverse mappings. Other subsystems (swap,
// findex, proc, clock, vm) all import mem the way the teacher's fs,
// circbuf, and vm packages all import its own mem package.
package mem

import "defs"

/// PAGESIZE is the size, in bytes, of a page/frame/block. It is a
/// compile-time constant; the host runtime does not pass it in.
const PAGESIZE = 1 << 12

/// ZeroFrame is the reserved, pinned, all-zero frame every freshly
/// reserved swap-backed page points at before its first write.
const ZeroFrame = 0

/// Trace gates the debugging dumps (Table.Dump, findex.Index.Dump), the
/// same way the teacher's stats.Stats toggle gates its own diagnostics.
/// Off by default; flipping it on costs nothing else.
var Trace = false

/// PTE mirrors the hardware-style page table entry the host runtime reads
/// on every reference: {ppage, read_enable, write_enable, referenced, dirty}.
type PTE struct {
	Ppage      int
	Read       bool
	Write      bool
	Referenced bool
	Dirty      bool
}

/// Clear resets a PTE to its unmapped state, as done at eviction (§4.2
/// step 6) and at destroy (§4.5 step 3).
func (p *PTE) Clear() {
	*p = PTE{}
}

/// Sharer is a (pid, vpn) pair: one entry in a frame's or a (file,block)'s
/// reverse-mapping sharer set. Handles are plain integers, never pointers,
/// so sharer sets can be copied, compared, and stored by value.
type Sharer struct {
	Pid int
	Vpn int
}

/// FileIO is the host-provided read/write interface for file_read and
/// file_write. name == "" addresses the swap file, matching spec.md's
/// name = null convention.
type FileIO interface {
	ReadBlock(name string, block int, dst []byte) defs.Err_t
	WriteBlock(name string, block int, src []byte) defs.Err_t
}

/// Physmem abstracts the host's raw physical memory window: PAGESIZE
/// bytes per frame, addressed by frame index.
type Physmem interface {
	Page(frame int) []byte
}
