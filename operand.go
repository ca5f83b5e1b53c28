package regalloc

import "fmt"

// OperandKind is the role an operand plays in its instruction.
type OperandKind uint8

const (
	// OperandUse reads the value at the instruction's early point.
	OperandUse OperandKind = iota
	// OperandDef writes the value at the instruction's late point.
	OperandDef
	// OperandMod reads and writes the value in place: the location must hold
	// the value across both points.
	OperandMod
)

// String implements fmt.Stringer.
func (k OperandKind) String() string {
	switch k {
	case OperandUse:
		return "use"
	case OperandDef:
		return "def"
	case OperandMod:
		return "mod"
	default:
		return "kind?"
	}
}

// ConstraintKind discriminates the placement constraints an operand can
// carry.
type ConstraintKind uint8

const (
	// ConstraintAnyReg admits any register of the virtual register's class.
	ConstraintAnyReg ConstraintKind = iota
	// ConstraintFixedReg requires one specific register.
	ConstraintFixedReg
	// ConstraintStack requires the value to be accessed from a spill slot.
	ConstraintStack
	// ConstraintTied requires this definition to share its location with a
	// use operand of the same instruction.
	ConstraintTied
)

// Constraint restricts where an operand may be placed. The zero value is
// ConstraintAnyReg.
type Constraint struct {
	kind ConstraintKind
	reg  PReg
	tied uint16
}

// AnyReg admits any register of the operand's class.
func AnyReg() Constraint { return Constraint{kind: ConstraintAnyReg} }

// FixedReg requires the operand to be placed in p.
func FixedReg(p PReg) Constraint { return Constraint{kind: ConstraintFixedReg, reg: p} }

// Stack requires the operand to be placed in a spill slot.
func Stack() Constraint { return Constraint{kind: ConstraintStack} }

// Tied requires a definition to share the location of the use operand at
// index i in the same instruction.
func Tied(i int) Constraint { return Constraint{kind: ConstraintTied, tied: uint16(i)} }

// Kind returns the constraint kind.
func (c Constraint) Kind() ConstraintKind { return c.kind }

// Reg returns the required register of a ConstraintFixedReg constraint.
func (c Constraint) Reg() PReg {
	if c.kind != ConstraintFixedReg {
		panic("BUG: Reg called on non-fixed constraint")
	}
	return c.reg
}

// TiedTo returns the operand index a ConstraintTied constraint refers to.
func (c Constraint) TiedTo() int {
	if c.kind != ConstraintTied {
		panic("BUG: TiedTo called on non-tied constraint")
	}
	return int(c.tied)
}

// String implements fmt.Stringer.
func (c Constraint) String() string {
	switch c.kind {
	case ConstraintAnyReg:
		return "any"
	case ConstraintFixedReg:
		return "fixed=" + c.reg.String()
	case ConstraintStack:
		return "stack"
	case ConstraintTied:
		return fmt.Sprintf("tied=%d", c.tied)
	default:
		return "constraint?"
	}
}

// Operand is one register reference of an instruction.
type Operand struct {
	VReg       VReg
	Kind       OperandKind
	Constraint Constraint
}

// String implements fmt.Stringer.
func (o Operand) String() string {
	s := fmt.Sprintf("%s:%s", o.Kind, o.VReg)
	if o.Constraint.kind != ConstraintAnyReg {
		s += "[" + o.Constraint.String() + "]"
	}
	return s
}
