// Package manifest handles consteval.toml: target and evaluator settings,
// plus the declarations of the program whose vtables and constants are
// evaluated.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/consteval/vm"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "consteval.toml"

// Manifest represents a consteval.toml file.
type Manifest struct {
	Target Target `toml:"target"`
	Eval   Eval   `toml:"eval"`
	Log    Log    `toml:"log"`

	Functions []string      `toml:"functions"`
	Structs   []StructDecl  `toml:"struct"`
	Traits    []TraitDecl   `toml:"trait"`
	Impls     []ImplDecl    `toml:"impl"`
	Vtables   []VtableQuery `toml:"vtable"`
	Consts    []ConstQuery  `toml:"const"`
	Calls     []CallQuery   `toml:"call"`

	// Dir is the directory containing the consteval.toml file (set at load time).
	Dir string `toml:"-"`
}

// Target describes the machine constants are evaluated for.
type Target struct {
	PointerWidth int    `toml:"pointer-width"` // bits
	Endian       string `toml:"endian"`
}

// Eval tunes the evaluator.
type Eval struct {
	RecursionLimit  int    `toml:"recursion-limit"`
	CacheSelections bool   `toml:"cache-selections"`
	MemoryLimit     uint64 `toml:"memory-limit"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns a manifest with every setting at its default and no
// declarations.
func Default() *Manifest {
	return &Manifest{
		Target: Target{PointerWidth: 64, Endian: "little"},
		Eval:   Eval{RecursionLimit: 128, CacheSelections: true},
	}
}

// Load parses a consteval.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text on top of the defaults. Keys the manifest
// does not define are rejected.
func Parse(data string) (*Manifest, error) {
	m := Default()
	md, err := toml.Decode(data, m)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if _, err := m.VMConfig(); err != nil {
		return nil, err
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a consteval.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// VMConfig converts the [target] and [eval] sections.
func (m *Manifest) VMConfig() (vm.Config, error) {
	cfg := vm.Config{
		RecursionLimit:  m.Eval.RecursionLimit,
		CacheSelections: m.Eval.CacheSelections,
		MemoryLimit:     m.Eval.MemoryLimit,
	}
	switch m.Target.PointerWidth {
	case 16, 32, 64:
		cfg.PointerSize = uint64(m.Target.PointerWidth / 8)
	default:
		return vm.Config{}, fmt.Errorf("target.pointer-width: unsupported width %d (want 16, 32 or 64)", m.Target.PointerWidth)
	}
	switch m.Target.Endian {
	case "little":
		cfg.Endian = vm.LittleEndian
	case "big":
		cfg.Endian = vm.BigEndian
	default:
		return vm.Config{}, fmt.Errorf("target.endian: %q is neither \"little\" nor \"big\"", m.Target.Endian)
	}
	if m.Eval.RecursionLimit <= 0 {
		return vm.Config{}, fmt.Errorf("eval.recursion-limit must be positive, got %d", m.Eval.RecursionLimit)
	}
	return cfg, nil
}

// LogFile returns the configured log path, or nil for stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) && m.Dir != "" {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
