package ir

import "github.com/celer-lang/regalloc"

// Builder helpers for constructing functions in tests and generators. They
// produce the same declarations the YAML and text forms decode into, so a
// built function serializes cleanly.

// NewFunction returns a function with one virtual register per class given.
func NewFunction(name string, classes ...regalloc.RegClass) *Function {
	f := &Function{Name: name}
	for _, c := range classes {
		f.VRegs = append(f.VRegs, VRegDecl{Class: c})
	}
	return f
}

// NewVReg declares an additional virtual register and returns its id.
func (f *Function) NewVReg(c regalloc.RegClass) regalloc.VReg {
	f.VRegs = append(f.VRegs, VRegDecl{Class: c})
	return regalloc.VReg(len(f.VRegs) - 1)
}

// SetRemat attaches a rematerialization descriptor to v.
func (f *Function) SetRemat(v regalloc.VReg, block, instr int, cost float64) {
	f.VRegs[v].Remat = &RematDecl{Block: block, Instr: instr, Cost: cost}
}

// AddGroup declares that the given virtual registers form a group.
func (f *Function) AddGroup(vs ...regalloc.VReg) {
	f.Groups = append(f.Groups, vs)
}

// NewBlock appends an empty block with the given frequency and returns it.
func (f *Function) NewBlock(freq float64) *Block {
	b := &Block{Index: len(f.Blocks), Frequency: freq}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Edge records a CFG edge between two blocks.
func (f *Function) Edge(from, to int) {
	f.Blocks[from].SuccIDs = append(f.Blocks[from].SuccIDs, to)
	f.Blocks[to].PredIDs = append(f.Blocks[to].PredIDs, from)
}

// Op appends an instruction with the given operands.
func (b *Block) Op(name string, operands ...OperandDecl) *Instr {
	in := &Instr{Name: name, Ops: operands}
	b.Code = append(b.Code, in)
	return in
}

// Copy appends a dst = src register copy.
func (b *Block) Copy(dst, src regalloc.VReg) *Instr {
	return b.Op("copy", Def(dst), Use(src))
}

// Call appends a call-like instruction clobbering the given registers.
func (b *Block) Call(clobbers ...regalloc.PReg) *Instr {
	in := b.Op("call")
	in.ClobberRegs = clobbers
	return in
}

// Use returns a use operand admitting any register of its class.
func Use(v regalloc.VReg) OperandDecl { return OperandDecl{VReg: v, Kind: "use"} }

// Def returns a definition operand admitting any register of its class.
func Def(v regalloc.VReg) OperandDecl { return OperandDecl{VReg: v, Kind: "def"} }

// Mod returns a modify operand: the value is read and written in place.
func Mod(v regalloc.VReg) OperandDecl { return OperandDecl{VReg: v, Kind: "mod"} }

// UseFixed returns a use pinned to register p.
func UseFixed(v regalloc.VReg, p regalloc.PReg) OperandDecl {
	return OperandDecl{VReg: v, Kind: "use", Fixed: &p}
}

// DefFixed returns a definition pinned to register p.
func DefFixed(v regalloc.VReg, p regalloc.PReg) OperandDecl {
	return OperandDecl{VReg: v, Kind: "def", Fixed: &p}
}

// UseStack returns a use served directly from the value's spill slot.
func UseStack(v regalloc.VReg) OperandDecl { return OperandDecl{VReg: v, Kind: "use", Stack: true} }

// DefStack returns a definition written directly to the value's spill slot.
func DefStack(v regalloc.VReg) OperandDecl { return OperandDecl{VReg: v, Kind: "def", Stack: true} }

// DefTied returns a definition sharing the location of the use operand at
// index i of the same instruction.
func DefTied(v regalloc.VReg, i int) OperandDecl {
	return OperandDecl{VReg: v, Kind: "def", Tied: &i}
}
