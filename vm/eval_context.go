// Package vm is the trait-object core of the const evaluator: it fulfills
// trait obligations, builds vtables in interpreter memory and reads them
// back, and resolves associated constants and trait methods to the items
// that implement them.
package vm

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/consteval/ir"
	"github.com/chazu/consteval/layout"
	"github.com/chazu/consteval/traits"
)

var log = commonlog.GetLogger("consteval.vm")

// Machine supplies the policy decisions of a particular evaluator.
type Machine interface {
	// ParamEnv returns the bounds assumed while evaluating.
	ParamEnv(ecx *EvalContext) ir.ParamEnv
}

// ConstMachine evaluates under a fixed parameter environment, which for
// monomorphic constants is empty.
type ConstMachine struct {
	Env ir.ParamEnv
}

// ParamEnv implements Machine.
func (m ConstMachine) ParamEnv(*EvalContext) ir.ParamEnv {
	return m.Env
}

// Config holds the tunables of an EvalContext.
type Config struct {
	PointerSize uint64
	Endian      Endian

	// RecursionLimit bounds nested obligation depth.
	RecursionLimit int
	// CacheSelections memoizes Fulfill results per erased query.
	CacheSelections bool
	// MemoryLimit caps total allocated bytes; zero is unlimited.
	MemoryLimit uint64
}

// DefaultConfig targets a 64-bit little-endian machine.
func DefaultConfig() Config {
	return Config{
		PointerSize:     8,
		Endian:          LittleEndian,
		RecursionLimit:  traits.DefaultRecursionLimit,
		CacheSelections: true,
	}
}

// EvalContext ties a program to the memory, layout oracle and solver the
// evaluator runs against. It is not safe for concurrent use.
type EvalContext struct {
	Program *ir.Program
	Memory  *Memory

	machine Machine
	solver  traits.Solver
	layout  layout.Oracle
	cfg     Config
	cache   *selectionCache
}

// NewEvalContext creates a context with a fresh Memory, the table-driven
// solver and the sequential layout calculator. A nil machine evaluates
// under the empty parameter environment.
func NewEvalContext(prog *ir.Program, machine Machine, cfg Config) *EvalContext {
	if machine == nil {
		machine = ConstMachine{}
	}
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = traits.DefaultRecursionLimit
	}
	ecx := &EvalContext{
		Program: prog,
		Memory: NewMemory(MemoryConfig{
			PointerSize: cfg.PointerSize,
			Endian:      cfg.Endian,
			Limit:       cfg.MemoryLimit,
		}),
		machine: machine,
		solver:  traits.NewProgramSolver(cfg.RecursionLimit),
		layout:  layout.NewCalculator(prog, cfg.PointerSize),
		cfg:     cfg,
	}
	if cfg.CacheSelections {
		ecx.cache = newSelectionCache()
	}
	return ecx
}

// UseSolver replaces the obligation solver and drops cached selections.
func (ecx *EvalContext) UseSolver(s traits.Solver) {
	ecx.solver = s
	if ecx.cache != nil {
		ecx.cache = newSelectionCache()
	}
}

// UseLayout replaces the layout oracle.
func (ecx *EvalContext) UseLayout(o layout.Oracle) {
	ecx.layout = o
}

// Config returns the configuration the context was created with.
func (ecx *EvalContext) Config() Config {
	return ecx.cfg
}

// ParamEnv returns the environment chosen by the machine.
func (ecx *EvalContext) ParamEnv() ir.ParamEnv {
	return ecx.machine.ParamEnv(ecx)
}

// CacheStats reports selection cache effectiveness. It is zero when
// caching is disabled.
func (ecx *EvalContext) CacheStats() CacheStats {
	if ecx.cache == nil {
		return CacheStats{}
	}
	return ecx.cache.stats
}
