package regalloc

import (
	"fmt"
	"io"
	"sort"

	svg "github.com/ajstarks/svgo"
	"github.com/davecgh/go-spew/spew"
)

// DumpState writes a deep dump of the state left behind by the last Allocate
// call on this context: every interval with its ranges, uses and resolved
// location, followed by the slot table.
func (c *Context) DumpState(w io.Writer) {
	for _, it := range c.intervals {
		fmt.Fprintln(w, it)
	}
	cfg := spew.ConfigState{Indent: "  ", SortKeys: true, DisableMethods: true}
	cfg.Fdump(w, c.slots)
}

const (
	chartRowH = 14
	chartPtW  = 16
	chartLeft = 64
)

// WriteIntervalChart renders the intervals of the last Allocate call as an
// SVG time line: one row per interval in vreg order, block boundaries as
// vertical rules, use and definition sites as ticks. Assigned intervals are
// blue, slot-spilled orange, rematerialized purple, pinned red.
func (c *Context) WriteIntervalChart(w io.Writer) {
	if len(c.blocks) == 0 {
		return
	}
	totalPts := int(c.blocks[len(c.blocks)-1].end)
	rows := make([]*interval, 0, len(c.intervals))
	for _, it := range c.intervals {
		if len(it.ranges) > 0 {
			rows = append(rows, it)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].vreg != rows[j].vreg {
			return rows[i].vreg < rows[j].vreg
		}
		return rows[i].start() < rows[j].start()
	})

	width := chartLeft + totalPts*chartPtW + 40
	height := (len(rows)+2)*chartRowH + 8
	canvas := svg.New(w)
	canvas.Start(width, height)
	for bi := range c.blocks {
		x := chartLeft + int(c.blocks[bi].begin)*chartPtW
		canvas.Line(x, 0, x, height, "stroke:#ccc")
		canvas.Text(x+2, chartRowH-4, fmt.Sprintf("b%d", bi), "font-size:10px;fill:#888")
	}
	for i, it := range rows {
		y := (i + 2) * chartRowH
		canvas.Text(4, y+chartRowH-4, fmt.Sprintf("%s/%d", it.vreg, it.id), "font-size:10px")
		fill := "fill:#4a90d9"
		switch {
		case it.state == stateSpilled && it.remat:
			fill = "fill:#b07cc6"
		case it.state == stateSpilled:
			fill = "fill:#d98b4a"
		case it.requireReg || it.fixedReg != PRegInvalid:
			fill = "fill:#d94a4a"
		}
		for _, r := range it.ranges {
			x := chartLeft + int(r.start)*chartPtW
			canvas.Rect(x, y+2, int(r.end-r.start)*chartPtW, chartRowH-4, fill)
		}
		for _, u := range it.uses {
			x := chartLeft + int(u.point)*chartPtW
			canvas.Line(x, y+2, x, y+chartRowH-2, "stroke:#000")
		}
		if it.alloc != AllocationNone {
			x := chartLeft + int(it.end())*chartPtW + 2
			canvas.Text(x, y+chartRowH-4, it.alloc.String(), "font-size:10px;fill:#333")
		}
	}
	canvas.End()
}
