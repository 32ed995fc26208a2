package main

import (
	"fmt"
	"io"
	"os"

	"github.com/chazu/consteval/manifest"
	"github.com/chazu/consteval/vm"
	"github.com/chazu/consteval/vm/snapshot"
)

// evaluate runs every query in plan and prints the results. It reports
// whether all of them succeeded; recoverable errors are printed and the
// remaining queries still run.
func evaluate(stdout, stderr io.Writer, ecx *vm.EvalContext, plan *manifest.Plan) bool {
	prog := plan.Program
	ok := true
	fail := func(what string, err error) {
		fmt.Fprintf(stderr, "Error: %s: %v\n", what, err)
		ok = false
	}

	for _, q := range plan.Vtables {
		shown := prog.DisplayTraitRef(q.Trait)
		vtable, err := ecx.GetVtable(q.Ty, q.Trait)
		if err != nil {
			fail("vtable "+shown, err)
			continue
		}
		if err := printVtable(stdout, ecx, shown, vtable); err != nil {
			fail("vtable "+shown, err)
		}
	}

	for _, q := range plan.Consts {
		inst, err := ecx.ResolveAssociatedConst(q.Def, q.Substs)
		if err != nil {
			fail("const "+prog.DefPath(q.Def), err)
			continue
		}
		fmt.Fprintf(stdout, "const %s => %s\n", prog.DefPath(q.Def), prog.DisplayInstance(inst))
	}

	for _, q := range plan.Calls {
		inst, err := ecx.Resolve(q.Def, q.Substs)
		if err != nil {
			fail("call "+prog.DefPath(q.Def), err)
			continue
		}
		fmt.Fprintf(stdout, "call %s => %s\n", prog.DefPath(q.Def), prog.DisplayInstance(inst))
	}

	stats := ecx.CacheStats()
	fmt.Fprintf(stdout, "selection cache: %d hits, %d misses\n", stats.Hits, stats.Misses)
	return ok
}

func printVtable(w io.Writer, ecx *vm.EvalContext, shown string, vtable vm.Pointer) error {
	prog := ecx.Program
	size, align, err := ecx.ReadSizeAndAlign(vtable)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "vtable %s at %s: size=%d align=%d\n", shown, vtable, size, align)

	drop, err := ecx.ReadDropType(vtable)
	if err != nil {
		return err
	}
	if drop == nil {
		fmt.Fprintf(w, "  drop: -\n")
	} else {
		fmt.Fprintf(w, "  drop: %s\n", prog.DisplayInstance(*drop))
	}

	a, err := ecx.Memory.Get(vtable.Alloc)
	if err != nil {
		return err
	}
	slots := int(uint64(len(a.Bytes))/ecx.Memory.PointerSize()) - 3
	for i := 0; i < slots; i++ {
		inst, err := ecx.ReadMethod(vtable, i)
		if err != nil {
			return err
		}
		if inst == nil {
			fmt.Fprintf(w, "  [%d] -\n", i)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s\n", i, prog.DisplayInstance(*inst))
	}
	return nil
}

func writeImage(mem *vm.Memory, path string) error {
	img, err := snapshot.Capture(mem)
	if err != nil {
		return err
	}
	data, err := snapshot.Marshal(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

func inspectImage(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	img, err := snapshot.Unmarshal(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "image session %s, %d-bit pointers, %d allocations, %d functions\n",
		img.SessionID(), img.PointerSize*8, len(img.Allocs), len(img.Fns))
	for _, a := range img.Allocs {
		if a.Kind != vm.KindVtable {
			continue
		}
		vt, err := img.DecodeVtable(a.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "vtable alloc%d: size=%d align=%d\n", a.ID, vt.Size, vt.Align)
		fmt.Fprintf(w, "  drop: %s\n", orDash(vt.Drop))
		for i, m := range vt.Methods {
			fmt.Fprintf(w, "  [%d] %s\n", i, orDash(m))
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
