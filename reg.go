package regalloc

import "fmt"

// VReg is the identifier of a virtual register in the input function.
// Identifiers are dense: a Function with NumVRegs() == n uses ids 0..n-1.
type VReg uint32

const (
	// VRegIDMax bounds the virtual register id space per function.
	VRegIDMax = VReg(1) << 28

	// VRegInvalid is never a valid virtual register.
	VRegInvalid = ^VReg(0)
)

// Valid returns true if this VReg refers to an actual virtual register.
func (v VReg) Valid() bool {
	return v < VRegIDMax
}

// String implements fmt.Stringer.
func (v VReg) String() string {
	if !v.Valid() {
		return "v?"
	}
	return fmt.Sprintf("v%d", uint32(v))
}

// PReg is the identifier of a physical register described by RegInfo.
type PReg uint16

const (
	// NumPRegMax is the maximum number of physical registers a RegInfo may
	// describe.
	NumPRegMax = 512

	// PRegInvalid is never a valid physical register.
	PRegInvalid = ^PReg(0)
)

// Valid returns true if this PReg refers to an actual physical register.
func (p PReg) Valid() bool {
	return p < NumPRegMax
}

// String implements fmt.Stringer.
func (p PReg) String() string {
	if !p.Valid() {
		return "p?"
	}
	return fmt.Sprintf("p%d", uint16(p))
}

// RegClass identifies a register class described by RegInfo.
type RegClass uint8

const (
	// NumRegClassMax is the maximum number of register classes a RegInfo may
	// describe.
	NumRegClassMax = 64

	// RegClassInvalid is never a valid register class.
	RegClassInvalid = ^RegClass(0)
)

// String implements fmt.Stringer.
func (c RegClass) String() string {
	if c >= NumRegClassMax {
		return "class?"
	}
	return fmt.Sprintf("class%d", uint8(c))
}

// RegGroup is an ordered tuple of physical registers that are always
// allocated, evicted and moved together. A virtual register group of the
// same arity is homed onto one of these templates as a unit.
type RegGroup struct {
	Class   RegClass
	Members []PReg
}

// String implements fmt.Stringer.
func (g RegGroup) String() string {
	s := "{"
	for i, p := range g.Members {
		if i > 0 {
			s += " "
		}
		s += p.String()
	}
	return s + "}"
}

// ProgramPoint is a position in the total order of all points of one
// function. Each instruction occupies two consecutive points: an "early"
// point at which its uses are read, followed by a "late" point at which its
// definitions are written. Assigning distinct points to the two phases lets
// a definition reuse the register of an operand that dies at the same
// instruction, e.g. add r0, r0, r0.
type ProgramPoint int64

const (
	pointEarlyOffset = 0
	pointLateOffset  = 1
	pointStride      = pointLateOffset + 1
)

// ProgramPointInvalid is ordered before every valid point.
const ProgramPointInvalid = ProgramPoint(-1)

// Allocation is the resolved location of a value: a physical register, a
// spill slot, or a rematerialization marker meaning the value is recomputed
// at its next use instead of being kept anywhere.
type Allocation uint32

// AllocKind discriminates the location kinds an Allocation can take.
type AllocKind uint8

const (
	AllocNone AllocKind = iota
	AllocReg
	AllocStack
	AllocRemat
)

const (
	allocKindShift   = 30
	allocPayloadMask = 1<<allocKindShift - 1
)

// AllocationNone is the zero Allocation; no location has been resolved.
const AllocationNone = Allocation(0)

// AllocationReg returns an Allocation referring to the given register.
func AllocationReg(p PReg) Allocation {
	return Allocation(AllocReg)<<allocKindShift | Allocation(p)
}

// AllocationStack returns an Allocation referring to the given spill slot
// index in the frame layout.
func AllocationStack(slot int) Allocation {
	return Allocation(AllocStack)<<allocKindShift | Allocation(slot)
}

// AllocationRemat marks a span whose value is recomputed on demand.
func AllocationRemat() Allocation {
	return Allocation(AllocRemat) << allocKindShift
}

// Kind returns the location kind of this Allocation.
func (a Allocation) Kind() AllocKind {
	return AllocKind(a >> allocKindShift)
}

// Reg returns the register this Allocation refers to.
// Must only be called when Kind() == AllocReg.
func (a Allocation) Reg() PReg {
	if a.Kind() != AllocReg {
		panic("BUG: Reg called on non-register allocation")
	}
	return PReg(a & allocPayloadMask)
}

// StackSlot returns the spill slot index this Allocation refers to.
// Must only be called when Kind() == AllocStack.
func (a Allocation) StackSlot() int {
	if a.Kind() != AllocStack {
		panic("BUG: StackSlot called on non-stack allocation")
	}
	return int(a & allocPayloadMask)
}

// String implements fmt.Stringer.
func (a Allocation) String() string {
	switch a.Kind() {
	case AllocReg:
		return a.Reg().String()
	case AllocStack:
		return fmt.Sprintf("slot%d", a.StackSlot())
	case AllocRemat:
		return "remat"
	default:
		return "none"
	}
}
