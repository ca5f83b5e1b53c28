package ir

import (
	"sort"

	"github.com/celer-lang/regalloc"
)

// RegInfo implements regalloc.RegInfo from plain data.
type RegInfo struct {
	Classes []ClassDecl `yaml:"classes"`

	// AliasSets lists groups of mutually aliasing registers; the symmetric
	// closure is derived from them.
	AliasSets [][]regalloc.PReg `yaml:"aliases,omitempty"`

	GroupDecls []GroupDecl `yaml:"groups,omitempty"`

	// Names maps registers to target names for debug output. Registers
	// without an entry print as pN.
	Names map[regalloc.PReg]string `yaml:"names,omitempty"`

	aliases map[regalloc.PReg][]regalloc.PReg
}

// ClassDecl declares one register class: its allocatable registers in
// preference order and its spill slot shape.
type ClassDecl struct {
	Name      string          `yaml:"name,omitempty"`
	Regs      []regalloc.PReg `yaml:"regs"`
	SlotSize  uint32          `yaml:"slot_size"`
	SlotAlign uint32          `yaml:"slot_align"`
}

// GroupDecl declares one register group template.
type GroupDecl struct {
	Class   regalloc.RegClass `yaml:"class"`
	Members []regalloc.PReg   `yaml:"members"`
}

var _ regalloc.RegInfo = (*RegInfo)(nil)

// NumClasses implements regalloc.RegInfo.
func (ri *RegInfo) NumClasses() int { return len(ri.Classes) }

// ClassRegs implements regalloc.RegInfo.
func (ri *RegInfo) ClassRegs(c regalloc.RegClass) []regalloc.PReg { return ri.Classes[c].Regs }

// Aliases implements regalloc.RegInfo.
func (ri *RegInfo) Aliases(p regalloc.PReg) []regalloc.PReg {
	if ri.aliases == nil {
		ri.buildAliases()
	}
	return ri.aliases[p]
}

func (ri *RegInfo) buildAliases() {
	m := make(map[regalloc.PReg][]regalloc.PReg)
	for _, set := range ri.AliasSets {
		for _, p := range set {
			for _, q := range set {
				if p == q || containsPReg(m[p], q) {
					continue
				}
				m[p] = append(m[p], q)
			}
		}
	}
	for p := range m {
		sort.Slice(m[p], func(i, j int) bool { return m[p][i] < m[p][j] })
	}
	ri.aliases = m
}

func containsPReg(ps []regalloc.PReg, p regalloc.PReg) bool {
	for _, q := range ps {
		if q == p {
			return true
		}
	}
	return false
}

// NumGroups implements regalloc.RegInfo.
func (ri *RegInfo) NumGroups() int { return len(ri.GroupDecls) }

// Group implements regalloc.RegInfo.
func (ri *RegInfo) Group(i int) regalloc.RegGroup {
	g := ri.GroupDecls[i]
	return regalloc.RegGroup{Class: g.Class, Members: g.Members}
}

// SlotInfo implements regalloc.RegInfo.
func (ri *RegInfo) SlotInfo(c regalloc.RegClass) (size, align uint32) {
	return ri.Classes[c].SlotSize, ri.Classes[c].SlotAlign
}

// PRegName implements regalloc.RegInfo.
func (ri *RegInfo) PRegName(p regalloc.PReg) string {
	if n, ok := ri.Names[p]; ok {
		return n
	}
	return p.String()
}

// ClassByName returns the id of the class with the given name.
func (ri *RegInfo) ClassByName(name string) (regalloc.RegClass, bool) {
	for i, c := range ri.Classes {
		if c.Name == name {
			return regalloc.RegClass(i), true
		}
	}
	return regalloc.RegClassInvalid, false
}
