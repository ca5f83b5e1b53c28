package regalloc

import (
	"github.com/sirupsen/logrus"

	"github.com/celer-lang/regalloc/internal/arena"
)

// Context owns all the state the allocator needs across one Allocate call:
// interval arenas, the allocation queue, register occupancy and slot
// coloring. A Context is meant to be reused between functions; Reset clears
// it without releasing backing storage. A Context must not be shared by
// concurrent allocations: it is exclusively owned by one call at a time.
type Context struct {
	// Logger, when non-nil, receives a debug-level trace of every liveness,
	// assignment, eviction, split and move decision. Leave nil in
	// production: the happy path then does no logging work at all.
	Logger *logrus.Logger

	intervalPool arena.Pool[interval]
	intervals    []*interval // by interval id
	vregIvals    [][]int     // per vreg: sibling interval ids
	blocks       []blockState
	queue        allocQueue
	occ          occupancy
	slots        []slotState

	// Reusable scratch buffers.
	conflictBuf []int
	evictBuf    []int
	pregBuf     []PReg

	inUse bool
}

// blockState is the per-block bookkeeping of the liveness pass plus the
// block's slice of the program point numbering.
type blockState struct {
	begin, end ProgramPoint
	freq       float64

	gen, kill       vregSet
	liveIn, liveOut vregSet
}

// slotState is one spill slot of the frame under construction. Ranges of
// the intervals colored onto the slot are kept merged and sorted so a
// first-fit probe is a plain overlap scan.
type slotState struct {
	size, align uint32
	ranges      []liveRange
	scratch     bool
}

// NewContext returns an empty Context ready for its first Allocate call.
func NewContext() *Context {
	c := &Context{}
	c.intervalPool = arena.NewPool[interval](resetInterval)
	return c
}

// Reset clears the context so it can be reused for another function. All
// arenas and buffers keep their backing storage.
func (c *Context) Reset() {
	if c.inUse {
		panic("BUG: Reset called while an allocation is in flight")
	}
	c.intervalPool.Reset()
	c.intervals = c.intervals[:0]
	for i := range c.vregIvals {
		c.vregIvals[i] = c.vregIvals[i][:0]
	}
	c.vregIvals = c.vregIvals[:0]
	for i := range c.blocks {
		b := &c.blocks[i]
		b.gen.reset()
		b.kill.reset()
		b.liveIn.reset()
		b.liveOut.reset()
	}
	c.blocks = c.blocks[:0]
	c.queue.reset()
	for i := range c.slots {
		c.slots[i].ranges = c.slots[i].ranges[:0]
	}
	c.slots = c.slots[:0]
	c.conflictBuf = c.conflictBuf[:0]
	c.evictBuf = c.evictBuf[:0]
	c.pregBuf = c.pregBuf[:0]
}

// newInterval allocates an interval handle from the arena.
func (c *Context) newInterval(v VReg, class RegClass) *interval {
	it := c.intervalPool.Allocate()
	it.id = len(c.intervals)
	it.vreg = v
	it.class = class
	c.intervals = append(c.intervals, it)
	if v.Valid() {
		c.vregIvals[v] = append(c.vregIvals[v], it.id)
	}
	return it
}

func (c *Context) interval(id int) *interval {
	return c.intervals[id]
}

// siblingAt returns the sibling interval of v whose ranges cover p, or nil.
func (c *Context) siblingAt(v VReg, p ProgramPoint) *interval {
	for _, id := range c.vregIvals[v] {
		if it := c.intervals[id]; it.covers(p) {
			return it
		}
	}
	return nil
}

// siblingStarting returns the sibling interval of v starting exactly at p,
// used to collect the aligned members of a split register group.
func (c *Context) siblingStarting(v VReg, p ProgramPoint) *interval {
	for _, id := range c.vregIvals[v] {
		if it := c.intervals[id]; it.start() == p {
			return it
		}
	}
	return nil
}

func (c *Context) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Debugf(format, args...)
	}
}
