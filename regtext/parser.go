package regtext

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/celer-lang/regalloc"
	"github.com/celer-lang/regalloc/ir"
)

// Parse reads a register file description followed by one function. The
// predecessor lists are derived from the successor lists, and the operand
// declarations are checked, so the results can be handed to the allocator
// directly.
func Parse(src []byte) (*ir.Function, *ir.RegInfo, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.next(); err != nil {
		return nil, nil, err
	}
	p.skipNewlines()

	ri, err := p.parseRegInfo()
	if err != nil {
		return nil, nil, err
	}
	p.skipNewlines()
	f, err := p.parseFunc(ri)
	if err != nil {
		return nil, nil, err
	}
	p.skipNewlines()
	if p.tok.kind != tokEOF {
		return nil, nil, p.errf("trailing input after function")
	}
	f.ComputePreds()
	if err := f.Prepare(); err != nil {
		return nil, nil, err
	}
	return f, ri, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) next() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errf(format string, args ...interface{}) error {
	prefix := "line " + strconv.Itoa(p.tok.line) + ": "
	return errors.Errorf(prefix+format, args...)
}

func (p *parser) expect(k tokKind) (token, error) {
	if p.tok.kind != k {
		return token{}, p.errf("expected %s, found %q", k, p.tok.text)
	}
	t := p.tok
	return t, p.next()
}

func (p *parser) word(w string) error {
	if p.tok.kind != tokIdent || p.tok.text != w {
		return p.errf("expected %q, found %q", w, p.tok.text)
	}
	return p.next()
}

func (p *parser) skipNewlines() {
	for p.tok.kind == tokNewline {
		if err := p.next(); err != nil {
			return
		}
	}
}

func (p *parser) ident() (string, error) {
	t, err := p.expect(tokIdent)
	return t.text, err
}

func (p *parser) number() (float64, error) {
	t, err := p.expect(tokNumber)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return 0, p.errf("malformed number %q", t.text)
	}
	return v, nil
}

func (p *parser) uintNumber() (uint64, error) {
	t, err := p.expect(tokNumber)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(t.text, 10, 32)
	if err != nil {
		return 0, p.errf("malformed integer %q", t.text)
	}
	return v, nil
}

// ref parses an identifier of the form <prefix><number>, e.g. p3, v12, b0.
func (p *parser) ref(prefix byte) (int, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return 0, err
	}
	if len(t.text) < 2 || t.text[0] != prefix {
		return 0, p.errf("expected %c-reference, found %q", prefix, t.text)
	}
	n, err := strconv.Atoi(t.text[1:])
	if err != nil || n < 0 {
		return 0, p.errf("malformed reference %q", t.text)
	}
	return n, nil
}

func (p *parser) pregList() ([]regalloc.PReg, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	var out []regalloc.PReg
	for p.tok.kind != tokRBrace {
		n, err := p.ref('p')
		if err != nil {
			return nil, err
		}
		out = append(out, regalloc.PReg(n))
	}
	return out, p.next()
}

func (p *parser) parseRegInfo() (*ir.RegInfo, error) {
	if err := p.word("reginfo"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	p.skipNewlines()

	ri := &ir.RegInfo{}
	for p.tok.kind != tokRBrace {
		kw, err := p.ident()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "class":
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			if _, ok := ri.ClassByName(name); ok {
				return nil, p.errf("class %q declared twice", name)
			}
			if err := p.word("slot"); err != nil {
				return nil, err
			}
			size, err := p.uintNumber()
			if err != nil {
				return nil, err
			}
			align, err := p.uintNumber()
			if err != nil {
				return nil, err
			}
			regs, err := p.pregList()
			if err != nil {
				return nil, err
			}
			ri.Classes = append(ri.Classes, ir.ClassDecl{
				Name: name, Regs: regs, SlotSize: uint32(size), SlotAlign: uint32(align),
			})
		case "alias":
			n, err := p.ref('p')
			if err != nil {
				return nil, err
			}
			rest, err := p.pregList()
			if err != nil {
				return nil, err
			}
			set := append([]regalloc.PReg{regalloc.PReg(n)}, rest...)
			ri.AliasSets = append(ri.AliasSets, set)
		case "group":
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			class, ok := ri.ClassByName(name)
			if !ok {
				return nil, p.errf("group names unknown class %q", name)
			}
			members, err := p.pregList()
			if err != nil {
				return nil, err
			}
			ri.GroupDecls = append(ri.GroupDecls, ir.GroupDecl{Class: class, Members: members})
		default:
			return nil, p.errf("unknown reginfo entry %q", kw)
		}
		if _, err := p.expect(tokNewline); err != nil {
			return nil, err
		}
	}
	if err := p.next(); err != nil { // consume '}'
		return nil, err
	}
	_, err := p.expect(tokNewline)
	return ri, err
}

func (p *parser) parseFunc(ri *ir.RegInfo) (*ir.Function, error) {
	if err := p.word("func"); err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.word("entry"); err != nil {
		return nil, err
	}
	entry, err := p.ref('b')
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	p.skipNewlines()

	f := &ir.Function{Name: name, Entry: entry}
	for p.tok.kind != tokRBrace {
		kw, err := p.ident()
		if err != nil {
			return nil, err
		}
		switch kw {
		case "vreg":
			if err := p.parseVReg(f, ri); err != nil {
				return nil, err
			}
		case "group":
			if _, err := p.expect(tokLBrace); err != nil {
				return nil, err
			}
			var vs []regalloc.VReg
			for p.tok.kind != tokRBrace {
				n, err := p.ref('v')
				if err != nil {
					return nil, err
				}
				vs = append(vs, regalloc.VReg(n))
			}
			if err := p.next(); err != nil {
				return nil, err
			}
			f.Groups = append(f.Groups, vs)
		case "block":
			if err := p.parseBlock(f); err != nil {
				return nil, err
			}
		default:
			return nil, p.errf("unknown function entry %q", kw)
		}
		if _, err := p.expect(tokNewline); err != nil {
			return nil, err
		}
	}
	return f, p.next()
}

func (p *parser) parseVReg(f *ir.Function, ri *ir.RegInfo) error {
	id, err := p.ref('v')
	if err != nil {
		return err
	}
	if id != len(f.VRegs) {
		return p.errf("vreg v%d declared out of order, expected v%d", id, len(f.VRegs))
	}
	className, err := p.ident()
	if err != nil {
		return err
	}
	class, ok := ri.ClassByName(className)
	if !ok {
		return p.errf("vreg v%d names unknown class %q", id, className)
	}
	decl := ir.VRegDecl{Class: class}
	if p.tok.kind == tokIdent && p.tok.text == "remat" {
		if err := p.next(); err != nil {
			return err
		}
		block, err := p.ref('b')
		if err != nil {
			return err
		}
		if _, err := p.expect(tokColon); err != nil {
			return err
		}
		instr, err := p.uintNumber()
		if err != nil {
			return err
		}
		if err := p.word("cost"); err != nil {
			return err
		}
		cost, err := p.number()
		if err != nil {
			return err
		}
		decl.Remat = &ir.RematDecl{Block: block, Instr: int(instr), Cost: cost}
	}
	f.VRegs = append(f.VRegs, decl)
	return nil
}

func (p *parser) parseBlock(f *ir.Function) error {
	id, err := p.ref('b')
	if err != nil {
		return err
	}
	if id != len(f.Blocks) {
		return p.errf("block b%d declared out of order, expected b%d", id, len(f.Blocks))
	}
	if err := p.word("freq"); err != nil {
		return err
	}
	freq, err := p.number()
	if err != nil {
		return err
	}
	b := f.NewBlock(freq)
	if p.tok.kind == tokIdent && p.tok.text == "succs" {
		if err := p.next(); err != nil {
			return err
		}
		if _, err := p.expect(tokLBrace); err != nil {
			return err
		}
		for p.tok.kind != tokRBrace {
			s, err := p.ref('b')
			if err != nil {
				return err
			}
			b.SuccIDs = append(b.SuccIDs, s)
		}
		if err := p.next(); err != nil {
			return err
		}
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return err
	}
	if _, err := p.expect(tokNewline); err != nil {
		return err
	}
	for p.tok.kind != tokRBrace {
		if err := p.parseInstr(b); err != nil {
			return err
		}
	}
	return p.next()
}

func (p *parser) parseInstr(b *ir.Block) error {
	name, err := p.ident()
	if err != nil {
		return err
	}
	in := b.Op(name)
	for p.tok.kind == tokIdent {
		switch p.tok.text {
		case "use", "def", "mod":
			op, err := p.parseOperand()
			if err != nil {
				return err
			}
			in.Ops = append(in.Ops, op)
		case "clobbers":
			if err := p.next(); err != nil {
				return err
			}
			regs, err := p.pregList()
			if err != nil {
				return err
			}
			in.ClobberRegs = regs
		default:
			return p.errf("unexpected %q in instruction", p.tok.text)
		}
	}
	_, err = p.expect(tokNewline)
	return err
}

func (p *parser) parseOperand() (ir.OperandDecl, error) {
	kind := p.tok.text
	if err := p.next(); err != nil {
		return ir.OperandDecl{}, err
	}
	n, err := p.ref('v')
	if err != nil {
		return ir.OperandDecl{}, err
	}
	d := ir.OperandDecl{VReg: regalloc.VReg(n), Kind: kind}
	if p.tok.kind == tokIdent {
		switch p.tok.text {
		case "fixed":
			if err := p.next(); err != nil {
				return d, err
			}
			r, err := p.ref('p')
			if err != nil {
				return d, err
			}
			preg := regalloc.PReg(r)
			d.Fixed = &preg
		case "stack":
			d.Stack = true
			if err := p.next(); err != nil {
				return d, err
			}
		case "tied":
			if err := p.next(); err != nil {
				return d, err
			}
			i, err := p.uintNumber()
			if err != nil {
				return d, err
			}
			ti := int(i)
			d.Tied = &ti
		}
	}
	return d, nil
}

// instrNameOK reports whether an instruction name survives a round trip
// through the text form: it must lex as one identifier and not collide with
// the operand keywords.
func instrNameOK(name string) bool {
	if name == "" || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentChar(name[i]) {
			return false
		}
	}
	switch name {
	case "use", "def", "mod", "clobbers":
		return false
	}
	return true
}

// sanitizeName maps an arbitrary instruction name onto one the format can
// carry.
func sanitizeName(name string) string {
	if instrNameOK(name) {
		return name
	}
	var sb strings.Builder
	sb.WriteString("op_")
	for i := 0; i < len(name); i++ {
		if isIdentChar(name[i]) {
			sb.WriteByte(name[i])
		}
	}
	return sb.String()
}
