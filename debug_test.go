package regalloc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// debugFixture allocates a function that leaves behind assigned, spilled and
// rematerialized intervals plus a slot, so both dump formats have something
// of every flavor to render.
func debugFixture(t *testing.T) *Context {
	t.Helper()
	f := newTestFunc(0, 0)
	b := f.block(1)
	b.ins("mk", def(0))
	b.ins("mk", def(1))
	b.call(0, 1)
	b.ins("ret", use(0), use(1))
	f.remats[1] = RematDef{Block: 0, Instr: 1, Cost: 0.5}

	ctx := NewContext()
	_, err := Allocate(f, testRI(2), ctx)
	require.NoError(t, err)
	return ctx
}

func TestDumpState(t *testing.T) {
	ctx := debugFixture(t)
	var buf bytes.Buffer
	ctx.DumpState(&buf)

	out := buf.String()
	require.Contains(t, out, "v0")
	require.Contains(t, out, "slot")
}

func TestWriteIntervalChart(t *testing.T) {
	ctx := debugFixture(t)
	var buf bytes.Buffer
	ctx.WriteIntervalChart(&buf)

	out := buf.String()
	require.Contains(t, out, "<svg")
	require.Contains(t, out, "</svg>")
	require.Contains(t, out, "b0")
	require.Contains(t, out, "v0")
}

func TestWriteIntervalChartEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	NewContext().WriteIntervalChart(&buf)
	require.Zero(t, buf.Len())
}
