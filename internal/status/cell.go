package status

import (
	"fmt"
	"sync/atomic"
)

// Cell holds a free-text status line. Last writer wins; readers never block writers.
type Cell struct {
	v atomic.Pointer[string]
}

// Set replaces the status.
func (c *Cell) Set(s string) {
	c.v.Store(&s)
}

// Setf formats and replaces the status.
func (c *Cell) Setf(format string, args ...any) {
	c.Set(fmt.Sprintf(format, args...))
}

// Get returns the latest status, or "" if none was set.
func (c *Cell) Get() string {
	if p := c.v.Load(); p != nil {
		return *p
	}
	return ""
}
