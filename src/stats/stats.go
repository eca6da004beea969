// Package stats provides disabled-by-default counters, the same pattern
// the teacher uses for its own kernel statistics: a compile-time toggle and
// a counter type whose increment method is a no-op unless the toggle is
// flipped.
package stats

import (
	"reflect"
	"strconv"
	"strings"
)

// Enabled gates whether counters actually accumulate. Off by default so a
// production host pays nothing for instrumentation it doesn't want. The
// pager is single-threaded (spec.md §5), so unlike the teacher's
// sync/atomic-backed Counter_t this one needs no atomic add.
const Enabled = false

/// Counter_t is a statistical counter.
type Counter_t int64

/// Inc increments the counter.
func (c *Counter_t) Inc() {
	if Enabled {
		*c++
	}
}

/// Add adds n to the counter.
func (c *Counter_t) Add(n int) {
	if Enabled {
		*c += Counter_t(n)
	}
}

/// String2 converts a struct of Counter_t fields to a printable string.
func String2(st interface{}) string {
	if !Enabled {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
