package remote

import "sync/atomic"

// Progress receives bundle download progress. Increment may be called from
// several goroutines at once. Done is called exactly once after Start, with
// the error that ended the operation, if any.
type Progress interface {
	Start(total int)
	Increment()
	Done(err error)
}

// NopProgress discards progress events.
type NopProgress struct{}

func (NopProgress) Start(int)  {}
func (NopProgress) Increment() {}
func (NopProgress) Done(error) {}

// Counter is a Progress that only counts.
type Counter struct {
	total     atomic.Int64
	completed atomic.Int64
	done      atomic.Bool
	err       atomic.Pointer[error]
}

func (c *Counter) Start(total int) {
	c.total.Store(int64(total))
}

func (c *Counter) Increment() {
	c.completed.Add(1)
}

func (c *Counter) Done(err error) {
	if err != nil {
		c.err.Store(&err)
	}
	c.done.Store(true)
}

// Total returns the value passed to Start.
func (c *Counter) Total() int {
	return int(c.total.Load())
}

// Completed returns the number of Increment calls.
func (c *Counter) Completed() int {
	return int(c.completed.Load())
}

// Finished reports whether Done was called, and with which error.
func (c *Counter) Finished() (bool, error) {
	var err error
	if p := c.err.Load(); p != nil {
		err = *p
	}
	return c.done.Load(), err
}
