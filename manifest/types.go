package manifest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/chazu/consteval/ir"
)

// TypeSyntaxError reports a type expression that does not parse or names
// something the program does not define.
type TypeSyntaxError struct {
	Src    string
	Offset int
	Msg    string
}

func (e *TypeSyntaxError) Error() string {
	return fmt.Sprintf("type %q: offset %d: %s", e.Src, e.Offset, e.Msg)
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokLifetime
	tokNumber
	tokPunct
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '\'':
			j := i + 1
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			if j == i+1 {
				return nil, &TypeSyntaxError{Src: src, Offset: i, Msg: "expected a lifetime name after '"}
			}
			toks = append(toks, token{tokLifetime, src[i+1 : j], i})
			i = j
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && src[j] >= '0' && src[j] <= '9' {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j], i})
			i = j
		case isIdentByte(src[i]):
			j := i
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j], i})
			i = j
		case strings.ContainsRune("<>,()[];&*+:!", c):
			toks = append(toks, token{tokPunct, src[i : i+1], i})
			i++
		default:
			return nil, &TypeSyntaxError{Src: src, Offset: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(toks, token{tokEOF, "", len(src)}), nil
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

// scope maps generic parameter names to the argument they stand for.
type scope map[string]ir.GenericArg

// genericScope numbers generics from offset. Names starting with ' are
// lifetimes.
func genericScope(generics []string, offset uint32) scope {
	s := make(scope, len(generics))
	for i, g := range generics {
		idx := offset + uint32(i)
		if strings.HasPrefix(g, "'") {
			s[g[1:]] = ir.EarlyBound(g[1:], idx)
		} else {
			s[g] = &ir.Param{Index: idx, Name: g}
		}
	}
	return s
}

// traitScope binds Self at index 0 followed by the trait's generics.
func traitScope(generics []string) scope {
	s := genericScope(generics, 1)
	s["Self"] = ir.SelfParam
	return s
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

type parser struct {
	src   string
	toks  []token
	pos   int
	prog  *ir.Program
	scope scope
}

func newParser(prog *ir.Program, sc scope, src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{src: src, toks: toks, prog: prog, scope: sc}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &TypeSyntaxError{Src: p.src, Offset: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) accept(s string) bool {
	if p.isPunct(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	if !p.accept(s) {
		return p.errorf(p.peek(), "expected %q", s)
	}
	return nil
}

func (p *parser) done() error {
	if t := p.peek(); t.kind != tokEOF {
		return p.errorf(t, "unexpected %q", t.text)
	}
	return nil
}

func (p *parser) parseType() (ir.Ty, error) {
	t := p.next()
	switch t.kind {
	case tokPunct:
		switch t.text {
		case "(":
			return p.parseTuple()
		case "&":
			return p.parseRef()
		case "*":
			return p.parseRawPtr()
		case "[":
			return p.parseArrayOrSlice()
		case "!":
			return ir.Never, nil
		}
	case tokIdent:
		switch t.text {
		case "dyn":
			return p.parseDyn()
		case "fn":
			name := p.next()
			def, ok := p.prog.Lookup(name.text)
			if d, _ := p.prog.LookupDef(def); name.kind != tokIdent || !ok || d.Kind != ir.DefFn {
				return nil, p.errorf(name, "%q is not a function", name.text)
			}
			return &ir.FnDef{Def: def}, nil
		}
		return p.parsePath(t)
	}
	return nil, p.errorf(t, "expected a type, found %q", t.text)
}

func (p *parser) parseTuple() (ir.Ty, error) {
	var elems []ir.Ty
	trailing := false
	for !p.accept(")") {
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		trailing = p.accept(",")
		if !trailing && !p.isPunct(")") {
			return nil, p.errorf(p.peek(), "expected \",\" or \")\"")
		}
	}
	if len(elems) == 1 && !trailing {
		return elems[0], nil
	}
	return ir.NewTuple(elems...), nil
}

func (p *parser) parseRef() (ir.Ty, error) {
	region := ir.Erased
	if p.peek().kind == tokLifetime {
		r, err := p.parseRegion(p.next())
		if err != nil {
			return nil, err
		}
		region = r
	}
	mut := false
	if t := p.peek(); t.kind == tokIdent && t.text == "mut" {
		p.next()
		mut = true
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &ir.Ref{Region: region, Elem: elem, Mut: mut}, nil
}

func (p *parser) parseRawPtr() (ir.Ty, error) {
	q := p.next()
	if q.kind != tokIdent || (q.text != "const" && q.text != "mut") {
		return nil, p.errorf(q, "expected \"const\" or \"mut\" after *")
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &ir.RawPtr{Elem: elem, Mut: q.text == "mut"}, nil
}

func (p *parser) parseArrayOrSlice() (ir.Ty, error) {
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.accept("]") {
		return &ir.Slice{Elem: elem}, nil
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	n := p.next()
	if n.kind != tokNumber {
		return nil, p.errorf(n, "expected an array length")
	}
	length, err := strconv.ParseUint(n.text, 10, 64)
	if err != nil {
		return nil, p.errorf(n, "bad array length: %v", err)
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return &ir.Array{Elem: elem, Len: length}, nil
}

// parseDyn parses the rest of dyn Trait<...> + 'r. The region defaults
// to 'static.
func (p *parser) parseDyn() (ir.Ty, error) {
	def, args, err := p.parseTraitPath()
	if err != nil {
		return nil, err
	}
	region := ir.Static
	if p.accept("+") {
		t := p.next()
		if t.kind != tokLifetime {
			return nil, p.errorf(t, "expected a lifetime after +")
		}
		if region, err = p.parseRegion(t); err != nil {
			return nil, err
		}
	}
	return ir.NewDynamic(ir.ExistentialTraitRef{Def: def, Substs: args}, region), nil
}

func (p *parser) parsePath(name token) (ir.Ty, error) {
	if arg, ok := p.scope[name.text]; ok {
		ty, isTy := arg.(ir.Ty)
		if !isTy {
			return nil, p.errorf(name, "lifetime %q used as a type", name.text)
		}
		return ty, nil
	}
	if prim, ok := ir.PrimByName(name.text); ok {
		return prim, nil
	}
	def, ok := p.prog.Lookup(name.text)
	s := p.prog.Struct(def)
	if !ok || s == nil {
		return nil, p.errorf(name, "unknown type %q", name.text)
	}
	args, err := p.parseArgs(name, len(s.Generics))
	if err != nil {
		return nil, err
	}
	return ir.NewAdt(def, args...), nil
}

// parseTraitPath parses Trait<args...> and returns the trait and its
// arguments, Self excluded.
func (p *parser) parseTraitPath() (ir.DefID, ir.Substs, error) {
	name := p.next()
	def, ok := p.prog.Lookup(name.text)
	tr := p.prog.Trait(def)
	if name.kind != tokIdent || !ok || tr == nil {
		return ir.NoDef, nil, p.errorf(name, "unknown trait %q", name.text)
	}
	args, err := p.parseArgs(name, len(tr.Generics))
	if err != nil {
		return ir.NoDef, nil, err
	}
	return def, ir.Substs(args), nil
}

func (p *parser) parseArgs(name token, want int) ([]ir.GenericArg, error) {
	var args []ir.GenericArg
	if p.accept("<") {
		for !p.accept(">") {
			arg, err := p.parseArg()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.accept(",") && !p.isPunct(">") {
				return nil, p.errorf(p.peek(), "expected \",\" or \">\"")
			}
		}
	}
	if len(args) != want {
		return nil, p.errorf(name, "%s takes %d generic arguments, got %d", name.text, want, len(args))
	}
	return args, nil
}

func (p *parser) parseArg() (ir.GenericArg, error) {
	if p.peek().kind == tokLifetime {
		return p.parseRegion(p.next())
	}
	return p.parseType()
}

func (p *parser) parseRegion(t token) (ir.Region, error) {
	switch t.text {
	case "static":
		return ir.Static, nil
	case "_":
		return ir.Erased, nil
	}
	if arg, ok := p.scope[t.text]; ok {
		if r, isRegion := arg.(ir.Region); isRegion {
			return r, nil
		}
	}
	return ir.Region{}, p.errorf(t, "undeclared lifetime '%s", t.text)
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// ParseType parses a type expression against prog. Generics names the
// type parameters in scope, numbered from zero; lifetimes are written
// with a leading '.
func ParseType(prog *ir.Program, src string, generics ...string) (ir.Ty, error) {
	return parseTypeIn(prog, genericScope(generics, 0), src)
}

func parseTypeIn(prog *ir.Program, sc scope, src string) (ir.Ty, error) {
	p, err := newParser(prog, sc, src)
	if err != nil {
		return nil, err
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return ty, p.done()
}

// parseTraitRef parses Trait<args...> and attaches self.
func parseTraitRef(prog *ir.Program, sc scope, self ir.Ty, src string) (ir.TraitRef, error) {
	p, err := newParser(prog, sc, src)
	if err != nil {
		return ir.TraitRef{}, err
	}
	def, args, err := p.parseTraitPath()
	if err != nil {
		return ir.TraitRef{}, err
	}
	if err := p.done(); err != nil {
		return ir.TraitRef{}, err
	}
	return ir.NewTraitRef(def, self, args...), nil
}

// parseWhere parses a clause "T: A + B<u8>" into one trait reference per
// bound.
func parseWhere(prog *ir.Program, sc scope, src string) ([]ir.TraitRef, error) {
	p, err := newParser(prog, sc, src)
	if err != nil {
		return nil, err
	}
	self, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	var bounds []ir.TraitRef
	for {
		def, args, err := p.parseTraitPath()
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, ir.NewTraitRef(def, self, args...))
		if !p.accept("+") {
			break
		}
	}
	return bounds, p.done()
}
