package pager

import (
	"testing"

	"defs"
	"mem"
)

// fakeRuntime is the in-memory stand-in for the host runtime's FileIO and
// Physmem collaborators (spec.md §6), used by every end-to-end test in this
// package. Swap blocks and named files each get their own storage area;
// ReadBlock/WriteBlock can be told to fail a specific (name, block) once,
// to drive the IO_FAIL scenarios.
type fakeRuntime struct {
	pages    [][]byte
	swap     map[int][]byte
	files    map[string]map[int][]byte
	failNext map[string]bool
}

func newFakeRuntime(maxPages int) *fakeRuntime {
	rt := &fakeRuntime{
		pages:    make([][]byte, maxPages),
		swap:     make(map[int][]byte),
		files:    make(map[string]map[int][]byte),
		failNext: make(map[string]bool),
	}
	for i := range rt.pages {
		rt.pages[i] = make([]byte, mem.PAGESIZE)
	}
	return rt
}

func (rt *fakeRuntime) Page(frame int) []byte {
	return rt.pages[frame]
}

func rtKey(name string, block int) string {
	return name + "/" + string(rune('0'+block))
}

func (rt *fakeRuntime) failOnce(name string, block int) {
	rt.failNext[rtKey(name, block)] = true
}

func (rt *fakeRuntime) ReadBlock(name string, block int, dst []byte) defs.Err_t {
	k := rtKey(name, block)
	if rt.failNext[k] {
		delete(rt.failNext, k)
		return defs.EIOFAIL
	}
	var src []byte
	if name == "" {
		src = rt.swap[block]
	} else {
		src = rt.files[name][block]
	}
	copy(dst, src)
	return 0
}

func (rt *fakeRuntime) WriteBlock(name string, block int, src []byte) defs.Err_t {
	k := rtKey(name, block)
	if rt.failNext[k] {
		delete(rt.failNext, k)
		return defs.EIOFAIL
	}
	buf := make([]byte, len(src))
	copy(buf, src)
	if name == "" {
		rt.swap[block] = buf
	} else {
		if rt.files[name] == nil {
			rt.files[name] = make(map[int][]byte)
		}
		rt.files[name][block] = buf
	}
	return 0
}

func newTestPager(t *testing.T, memoryPages, swapBlocks int) (*Pager, *fakeRuntime) {
	t.Helper()
	rt := newFakeRuntime(memoryPages)
	p := New(Config{
		ArenaBase:   0x60000000,
		ArenaSize:   64 * mem.PAGESIZE,
		MemoryPages: memoryPages,
		SwapBlocks:  swapBlocks,
		IO:          rt,
		Physmem:     rt,
	})
	return p, rt
}
