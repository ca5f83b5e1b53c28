package regtext

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/celer-lang/regalloc/ir"
)

// Print writes the canonical text form of a register file and function.
// Printing the result of Parse reproduces the canonical input byte for
// byte, and parsing the output yields an equivalent function.
func Print(w io.Writer, f *ir.Function, ri *ir.RegInfo) error {
	var buf bytes.Buffer

	names := make([]string, len(ri.Classes))
	for i, c := range ri.Classes {
		names[i] = c.Name
		if names[i] == "" {
			names[i] = "c" + strconv.Itoa(i)
		}
	}

	buf.WriteString("reginfo {\n")
	for i, c := range ri.Classes {
		fmt.Fprintf(&buf, "\tclass %s slot %d %d {", names[i], c.SlotSize, c.SlotAlign)
		for _, p := range c.Regs {
			buf.WriteString(" " + p.String())
		}
		buf.WriteString(" }\n")
	}
	for _, set := range ri.AliasSets {
		if len(set) < 2 {
			continue
		}
		fmt.Fprintf(&buf, "\talias %s {", set[0])
		for _, p := range set[1:] {
			buf.WriteString(" " + p.String())
		}
		buf.WriteString(" }\n")
	}
	for _, g := range ri.GroupDecls {
		if int(g.Class) >= len(names) {
			return errors.Errorf("group template names unknown class %d", g.Class)
		}
		fmt.Fprintf(&buf, "\tgroup %s {", names[g.Class])
		for _, p := range g.Members {
			buf.WriteString(" " + p.String())
		}
		buf.WriteString(" }\n")
	}
	buf.WriteString("}\n\n")

	fname := f.Name
	if !instrNameOK(fname) {
		fname = "f"
	}
	fmt.Fprintf(&buf, "func %s entry b%d {\n", fname, f.Entry)
	for vi, v := range f.VRegs {
		if int(v.Class) >= len(names) {
			return errors.Errorf("v%d names unknown class %d", vi, v.Class)
		}
		fmt.Fprintf(&buf, "\tvreg v%d %s", vi, names[v.Class])
		if r := v.Remat; r != nil {
			fmt.Fprintf(&buf, " remat b%d:%d cost %s", r.Block, r.Instr, formatFloat(r.Cost))
		}
		buf.WriteByte('\n')
	}
	for _, g := range f.Groups {
		buf.WriteString("\tgroup {")
		for _, v := range g {
			buf.WriteString(" " + v.String())
		}
		buf.WriteString(" }\n")
	}
	for _, b := range f.Blocks {
		fmt.Fprintf(&buf, "\tblock b%d freq %s", b.Index, formatFloat(b.Frequency))
		if len(b.SuccIDs) > 0 {
			buf.WriteString(" succs {")
			for _, s := range b.SuccIDs {
				fmt.Fprintf(&buf, " b%d", s)
			}
			buf.WriteString(" }")
		}
		buf.WriteString(" {\n")
		for _, in := range b.Code {
			buf.WriteString("\t\t" + sanitizeName(in.Name))
			for _, d := range in.Ops {
				buf.WriteString(" " + printOperand(d))
			}
			if len(in.ClobberRegs) > 0 {
				buf.WriteString(" clobbers {")
				for _, p := range in.ClobberRegs {
					buf.WriteString(" " + p.String())
				}
				buf.WriteString(" }")
			}
			buf.WriteByte('\n')
		}
		buf.WriteString("\t}\n")
	}
	buf.WriteString("}\n")

	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "printing function")
}

func printOperand(d ir.OperandDecl) string {
	s := d.Kind + " " + d.VReg.String()
	switch {
	case d.Fixed != nil:
		s += " fixed " + d.Fixed.String()
	case d.Stack:
		s += " stack"
	case d.Tied != nil:
		s += " tied " + strconv.Itoa(*d.Tied)
	}
	return s
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
