// Package ir provides a concrete, self-describing implementation of the
// regalloc input interfaces: functions, blocks, instructions and register
// files as plain data structures that can be built programmatically,
// serialized to YAML, or parsed from the text format in package regtext.
package ir

import (
	"fmt"
	"strings"

	"github.com/celer-lang/regalloc"
)

// Function implements regalloc.Function.
type Function struct {
	Name   string            `yaml:"name,omitempty"`
	Entry  int               `yaml:"entry"`
	VRegs  []VRegDecl        `yaml:"vregs"`
	Blocks []*Block          `yaml:"blocks"`
	Groups [][]regalloc.VReg `yaml:"groups,omitempty"`
}

// VRegDecl declares one virtual register: its class and, optionally, how to
// rematerialize its value.
type VRegDecl struct {
	Class regalloc.RegClass `yaml:"class"`
	Remat *RematDecl        `yaml:"remat,omitempty"`
}

// RematDecl mirrors regalloc.RematDef in serializable form.
type RematDecl struct {
	Block int     `yaml:"block"`
	Instr int     `yaml:"instr"`
	Cost  float64 `yaml:"cost"`
}

// Block implements regalloc.Block.
type Block struct {
	Index     int      `yaml:"id"`
	Frequency float64  `yaml:"freq"`
	SuccIDs   []int    `yaml:"succs,omitempty"`
	PredIDs   []int    `yaml:"preds,omitempty"`
	Code      []*Instr `yaml:"instrs"`
}

// Instr implements regalloc.Instr.
type Instr struct {
	Name        string          `yaml:"op"`
	Ops         []OperandDecl   `yaml:"operands,omitempty"`
	ClobberRegs []regalloc.PReg `yaml:"clobbers,omitempty"`

	ops []regalloc.Operand
}

// OperandDecl is the serializable form of one operand. Kind is "use", "def"
// or "mod"; at most one of Fixed, Stack and Tied may be set, and Tied only
// on a "def".
type OperandDecl struct {
	VReg  regalloc.VReg `yaml:"vreg"`
	Kind  string        `yaml:"kind"`
	Fixed *regalloc.PReg `yaml:"fixed,omitempty"`
	Stack bool          `yaml:"stack,omitempty"`
	Tied  *int          `yaml:"tied,omitempty"`
}

var _ regalloc.Function = (*Function)(nil)

// NumBlocks implements regalloc.Function.
func (f *Function) NumBlocks() int { return len(f.Blocks) }

// Block implements regalloc.Function.
func (f *Function) Block(id int) regalloc.Block { return f.Blocks[id] }

// EntryBlock implements regalloc.Function.
func (f *Function) EntryBlock() int { return f.Entry }

// NumVRegs implements regalloc.Function.
func (f *Function) NumVRegs() int { return len(f.VRegs) }

// VRegClass implements regalloc.Function.
func (f *Function) VRegClass(v regalloc.VReg) regalloc.RegClass { return f.VRegs[v].Class }

// Remat implements regalloc.Function.
func (f *Function) Remat(v regalloc.VReg) (regalloc.RematDef, bool) {
	if int(v) >= len(f.VRegs) || f.VRegs[v].Remat == nil {
		return regalloc.RematDef{}, false
	}
	r := f.VRegs[v].Remat
	return regalloc.RematDef{Block: r.Block, Instr: r.Instr, Cost: r.Cost}, true
}

// VRegGroups implements regalloc.Function.
func (f *Function) VRegGroups() [][]regalloc.VReg { return f.Groups }

var _ regalloc.Block = (*Block)(nil)

// ID implements regalloc.Block.
func (b *Block) ID() int { return b.Index }

// Succs implements regalloc.Block.
func (b *Block) Succs() []int { return b.SuccIDs }

// Preds implements regalloc.Block.
func (b *Block) Preds() []int { return b.PredIDs }

// NumInstrs implements regalloc.Block.
func (b *Block) NumInstrs() int { return len(b.Code) }

// Instr implements regalloc.Block.
func (b *Block) Instr(i int) regalloc.Instr { return b.Code[i] }

// Freq implements regalloc.Block.
func (b *Block) Freq() float64 { return b.Frequency }

var _ regalloc.Instr = (*Instr)(nil)

// Operands implements regalloc.Instr. The operand list is built from the
// declarations on first use; declarations must have been checked by Prepare
// or constructed through the package's builder helpers.
func (i *Instr) Operands() []regalloc.Operand {
	if i.ops == nil && len(i.Ops) > 0 {
		ops := make([]regalloc.Operand, len(i.Ops))
		for oi, d := range i.Ops {
			op, err := d.operand()
			if err != nil {
				panic(fmt.Sprintf("BUG: unchecked operand %d: %v", oi, err))
			}
			ops[oi] = op
		}
		i.ops = ops
	}
	return i.ops
}

// Clobbers implements regalloc.Instr.
func (i *Instr) Clobbers() []regalloc.PReg { return i.ClobberRegs }

// IsCopy implements regalloc.Instr.
func (i *Instr) IsCopy() bool { return i.Name == "copy" }

// String implements fmt.Stringer.
func (i *Instr) String() string {
	var buf strings.Builder
	buf.WriteString(i.Name)
	for _, d := range i.Ops {
		buf.WriteByte(' ')
		buf.WriteString(d.String())
	}
	for _, p := range i.ClobberRegs {
		buf.WriteString(" clobber " + p.String())
	}
	return buf.String()
}

// String implements fmt.Stringer.
func (d OperandDecl) String() string {
	s := d.Kind + " " + d.VReg.String()
	switch {
	case d.Fixed != nil:
		s += " fixed " + d.Fixed.String()
	case d.Stack:
		s += " stack"
	case d.Tied != nil:
		s += fmt.Sprintf(" tied %d", *d.Tied)
	}
	return s
}

func (d OperandDecl) operand() (regalloc.Operand, error) {
	op := regalloc.Operand{VReg: d.VReg}
	switch d.Kind {
	case "use":
		op.Kind = regalloc.OperandUse
	case "def":
		op.Kind = regalloc.OperandDef
	case "mod":
		op.Kind = regalloc.OperandMod
	default:
		return op, fmt.Errorf("unknown operand kind %q", d.Kind)
	}
	set := 0
	if d.Fixed != nil {
		op.Constraint = regalloc.FixedReg(*d.Fixed)
		set++
	}
	if d.Stack {
		op.Constraint = regalloc.Stack()
		set++
	}
	if d.Tied != nil {
		if op.Kind != regalloc.OperandDef {
			return op, fmt.Errorf("tied constraint on a %s operand", d.Kind)
		}
		op.Constraint = regalloc.Tied(*d.Tied)
		set++
	}
	if set > 1 {
		return op, fmt.Errorf("operand %s carries %d constraints", d.VReg, set)
	}
	return op, nil
}

// Prepare checks every operand declaration and materializes the operand
// lists. It must be called after deserialization, before the function is
// handed to the allocator.
func (f *Function) Prepare() error {
	for bi, b := range f.Blocks {
		for ii, in := range b.Code {
			in.ops = nil
			if len(in.Ops) == 0 {
				continue
			}
			ops := make([]regalloc.Operand, len(in.Ops))
			for oi, d := range in.Ops {
				op, err := d.operand()
				if err != nil {
					return fmt.Errorf("block %d instr %d operand %d: %w", bi, ii, oi, err)
				}
				ops[oi] = op
			}
			in.ops = ops
		}
	}
	return nil
}

// ComputePreds rebuilds every block's predecessor list from the successor
// lists, in ascending block order.
func (f *Function) ComputePreds() {
	for _, b := range f.Blocks {
		b.PredIDs = b.PredIDs[:0]
	}
	for _, b := range f.Blocks {
		for _, s := range b.SuccIDs {
			if s >= 0 && s < len(f.Blocks) {
				sb := f.Blocks[s]
				sb.PredIDs = append(sb.PredIDs, b.Index)
			}
		}
	}
}
