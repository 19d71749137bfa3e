package pipeline

// FlushFunc receives one batch from a Collector. names and handles are
// aligned: handles[i] resolves when names[i] has been written. Both slices
// are owned by the callee.
type FlushFunc func(names []string, handles []*Handle)

// Collector accumulates written file names and their write handles for one
// (date, chunk) task and flushes them in batches of a fixed threshold.
//
// A Collector has a single owner and is not safe for concurrent use. Every
// handle added since the last flush is retained, so a flushed batch always
// covers the writes of all of its files.
type Collector struct {
	threshold int
	names     []string
	handles   []*Handle
	flush     FlushFunc
	batches   int
}

// NewCollector creates a collector that calls flush every threshold adds.
func NewCollector(threshold int, flush FlushFunc) *Collector {
	if threshold <= 0 {
		threshold = 1
	}
	return &Collector{
		threshold: threshold,
		names:     make([]string, 0, threshold),
		handles:   make([]*Handle, 0, threshold),
		flush:     flush,
	}
}

// Add records name with its write handle and flushes when the threshold is
// reached.
func (c *Collector) Add(name string, h *Handle) {
	c.names = append(c.names, name)
	c.handles = append(c.handles, h)
	if len(c.names) >= c.threshold {
		c.emit()
	}
}

// Drain flushes any retained names as a final, possibly short, batch.
func (c *Collector) Drain() {
	if len(c.names) > 0 {
		c.emit()
	}
}

// Pending returns a copy of the names not yet flushed.
func (c *Collector) Pending() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Batches returns the number of batches flushed so far.
func (c *Collector) Batches() int { return c.batches }

func (c *Collector) emit() {
	names, handles := c.names, c.handles
	c.names = make([]string, 0, c.threshold)
	c.handles = make([]*Handle, 0, c.threshold)
	c.batches++
	c.flush(names, handles)
}
