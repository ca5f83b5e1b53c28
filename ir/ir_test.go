package ir

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/celer-lang/regalloc"
)

func twoRegFile() *RegInfo {
	return &RegInfo{
		Classes: []ClassDecl{
			{Name: "int", Regs: []regalloc.PReg{0, 1}, SlotSize: 8, SlotAlign: 8},
			{Name: "vec", Regs: []regalloc.PReg{2, 3}, SlotSize: 16, SlotAlign: 16},
		},
		AliasSets:  [][]regalloc.PReg{{2, 3}},
		GroupDecls: []GroupDecl{{Class: 1, Members: []regalloc.PReg{2, 3}}},
		Names:      map[regalloc.PReg]string{0: "rax"},
	}
}

func buildSample() *Function {
	f := NewFunction("sample", 0, 0, 1)
	b0 := f.NewBlock(1)
	b0.Op("mk", Def(0))
	b0.Op("mk", DefFixed(1, 1))
	b1 := f.NewBlock(4)
	b1.Op("neg", Use(0), DefTied(2, 0))
	b1.Call(0)
	b1.Copy(0, 1)
	b1.Op("ret", Use(0), UseStack(2))
	f.Edge(0, 1)
	f.SetRemat(1, 0, 1, 2)
	return f
}

func TestFunctionImplementsInterfaces(t *testing.T) {
	f := buildSample()
	require.Equal(t, 2, f.NumBlocks())
	require.Equal(t, 0, f.EntryBlock())
	require.Equal(t, 3, f.NumVRegs())
	require.Equal(t, regalloc.RegClass(0), f.VRegClass(0))
	require.Equal(t, regalloc.RegClass(1), f.VRegClass(2))

	r, ok := f.Remat(1)
	require.True(t, ok)
	require.Equal(t, regalloc.RematDef{Block: 0, Instr: 1, Cost: 2}, r)
	_, ok = f.Remat(0)
	require.False(t, ok)

	b := f.Block(1)
	require.Equal(t, 1, b.ID())
	require.Equal(t, []int{0}, b.Preds())
	require.Equal(t, 4, b.NumInstrs())
	require.Equal(t, 4.0, b.Freq())

	neg := b.Instr(0)
	ops := neg.Operands()
	require.Len(t, ops, 2)
	require.Equal(t, regalloc.OperandUse, ops[0].Kind)
	require.Equal(t, regalloc.ConstraintTied, ops[1].Constraint.Kind())
	require.Equal(t, 0, ops[1].Constraint.TiedTo())

	require.Equal(t, []regalloc.PReg{0}, b.Instr(1).Clobbers())
	require.False(t, b.Instr(1).IsCopy())
	require.True(t, b.Instr(2).IsCopy())
}

func TestInstrString(t *testing.T) {
	f := buildSample()
	require.Equal(t, "mk def v1 fixed p1", f.Blocks[0].Code[1].String())
	require.Equal(t, "neg use v0 def v2 tied 0", f.Blocks[1].Code[0].String())
	require.Equal(t, "call clobber p0", f.Blocks[1].Code[1].String())
	require.Equal(t, "ret use v0 use v2 stack", f.Blocks[1].Code[3].String())
}

func TestPrepareRejectsDoubleConstraint(t *testing.T) {
	f := NewFunction("bad", 0)
	p := regalloc.PReg(0)
	f.NewBlock(1).Op("mk", OperandDecl{VReg: 0, Kind: "def", Fixed: &p, Stack: true})
	err := f.Prepare()
	require.Error(t, err)
	require.Contains(t, err.Error(), "constraints")
}

func TestPrepareRejectsTiedUse(t *testing.T) {
	f := NewFunction("bad", 0, 0)
	ti := 0
	f.NewBlock(1).Op("op", Def(0), OperandDecl{VReg: 1, Kind: "use", Tied: &ti})
	err := f.Prepare()
	require.Error(t, err)
	require.Contains(t, err.Error(), "tied constraint on a use operand")
}

func TestPrepareRejectsUnknownKind(t *testing.T) {
	f := NewFunction("bad", 0)
	f.NewBlock(1).Op("op", OperandDecl{VReg: 0, Kind: "read"})
	err := f.Prepare()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown operand kind "read"`)
}

func TestComputePreds(t *testing.T) {
	f := NewFunction("cfg")
	f.NewBlock(1)
	f.NewBlock(1)
	f.NewBlock(1)
	f.Blocks[0].SuccIDs = []int{1, 2}
	f.Blocks[1].SuccIDs = []int{2}
	f.Blocks[2].PredIDs = []int{9} // stale, must be rebuilt

	f.ComputePreds()
	require.Empty(t, f.Blocks[0].PredIDs)
	require.Equal(t, []int{0}, f.Blocks[1].PredIDs)
	require.Equal(t, []int{0, 1}, f.Blocks[2].PredIDs)
}

func TestRegInfoAccessors(t *testing.T) {
	ri := twoRegFile()
	require.Equal(t, 2, ri.NumClasses())
	require.Equal(t, []regalloc.PReg{2, 3}, ri.ClassRegs(1))

	size, align := ri.SlotInfo(1)
	require.Equal(t, uint32(16), size)
	require.Equal(t, uint32(16), align)

	require.Equal(t, []regalloc.PReg{3}, ri.Aliases(2))
	require.Equal(t, []regalloc.PReg{2}, ri.Aliases(3))
	require.Empty(t, ri.Aliases(0))

	require.Equal(t, 1, ri.NumGroups())
	require.Equal(t, regalloc.RegGroup{Class: 1, Members: []regalloc.PReg{2, 3}}, ri.Group(0))

	require.Equal(t, "rax", ri.PRegName(0))
	require.Equal(t, "p1", ri.PRegName(1))

	c, ok := ri.ClassByName("vec")
	require.True(t, ok)
	require.Equal(t, regalloc.RegClass(1), c)
	_, ok = ri.ClassByName("fp")
	require.False(t, ok)
}

func TestAliasSetClosure(t *testing.T) {
	ri := &RegInfo{
		Classes:   []ClassDecl{{Regs: []regalloc.PReg{0, 1, 2}, SlotSize: 8, SlotAlign: 8}},
		AliasSets: [][]regalloc.PReg{{0, 1, 2}},
	}
	require.Equal(t, []regalloc.PReg{1, 2}, ri.Aliases(0))
	require.Equal(t, []regalloc.PReg{0, 2}, ri.Aliases(1))
	require.Equal(t, []regalloc.PReg{0, 1}, ri.Aliases(2))
}

func TestYAMLRoundTrip(t *testing.T) {
	file := &File{RegInfo: twoRegFile(), Function: buildSample()}

	var first bytes.Buffer
	require.NoError(t, EncodeYAML(&first, file))

	decoded, err := DecodeYAML(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)

	// Re-encoding the decoded file reproduces the original bytes.
	var second bytes.Buffer
	require.NoError(t, EncodeYAML(&second, decoded))
	require.Equal(t, first.String(), second.String())

	// The decoded function is ready for allocation.
	require.NoError(t, regalloc.ValidateRegInfo(decoded.RegInfo))
	require.NoError(t, regalloc.ValidateFunction(decoded.Function, decoded.RegInfo))
}

func TestDecodeYAMLRejectsUnknownFields(t *testing.T) {
	_, err := DecodeYAML(strings.NewReader("reginfo:\n  classes: []\n  color: red\nfunction:\n  entry: 0\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decoding function")
}

func TestDecodeYAMLRejectsMissingSections(t *testing.T) {
	_, err := DecodeYAML(strings.NewReader("function:\n  entry: 0\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing reginfo or function")
}

func TestDecodeYAMLRejectsBadOperand(t *testing.T) {
	src := `
reginfo:
  classes:
    - regs: [0]
      slot_size: 8
      slot_align: 8
function:
  entry: 0
  vregs:
    - class: 0
  blocks:
    - id: 0
      freq: 1
      instrs:
        - op: mk
          operands:
            - vreg: 0
              kind: write
`
	_, err := DecodeYAML(strings.NewReader(src))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown operand kind")
}
