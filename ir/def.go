// Package ir defines the typed intermediate representation consumed by the
// const evaluator: definitions, types, regions, substitutions, trait
// references and monomorphized instances, plus the Program tables that
// describe traits, structs and impls.
package ir

import "fmt"

// DefID identifies a definition in a Program. The zero value is NoDef.
type DefID uint32

// NoDef is the invalid definition ID.
const NoDef DefID = 0

func (id DefID) String() string {
	return fmt.Sprintf("def#%d", uint32(id))
}

// IsValid reports whether id refers to a definition.
func (id DefID) IsValid() bool {
	return id != NoDef
}

// DefKind classifies a definition.
type DefKind int

const (
	DefStruct DefKind = iota + 1
	DefTrait
	DefImpl
	DefFn
	DefAssocFn
	DefAssocConst
	DefAssocTy
)

func (k DefKind) String() string {
	switch k {
	case DefStruct:
		return "struct"
	case DefTrait:
		return "trait"
	case DefImpl:
		return "impl"
	case DefFn:
		return "fn"
	case DefAssocFn:
		return "associated fn"
	case DefAssocConst:
		return "associated const"
	case DefAssocTy:
		return "associated type"
	}
	return "unknown"
}

// Def is the common header of every definition.
type Def struct {
	ID     DefID
	Kind   DefKind
	Name   string
	Parent DefID // containing trait or impl for associated items
}

// Span is a source location used only for diagnostics.
type Span struct {
	File string
	Line int
	Col  int
}

// DummySpan is used where no source location is available.
var DummySpan = Span{}

// IsDummy reports whether s carries no location.
func (s Span) IsDummy() bool {
	return s == DummySpan
}

func (s Span) String() string {
	if s.IsDummy() {
		return "<unknown>"
	}
	if s.Col == 0 {
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}
