// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// Package movelang drives the compilation of a verified Move model into
// relocatable objects for the PolkaVM RISC-V target: one IR module per Move
// module, plus the shared native runtime module, all code-generated through
// an external llc.
package movelang

import (
	"errors"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/model"
	"github.com/movechain/go-move/movelang/runtime"
	"github.com/movechain/go-move/movelang/stackless"
)

// Error classes surfaced at the driver boundary.
var (
	// ErrCompileSource marks invalid Move input or an unresolved
	// dependency.
	ErrCompileSource = errors.New("movelang: compile error")
	// ErrLLVM marks target creation, verification or object emission
	// failures.
	ErrLLVM = errors.New("movelang: llvm error")
)

// Options configures one compilation.
type Options struct {
	// Output is the path of the final program blob.
	Output string
	// Sources and Dependencies are the Move input paths (consumed by the
	// front-end, carried here for diagnostics).
	Sources      []string
	Dependencies []string
	// NamedAddresses maps named addresses onto account addresses.
	NamedAddresses map[string]common.Address
	// Signers supplies script signer parameters by position.
	Signers []common.Address
	// EmitIR additionally leaves the textual IR next to each object.
	EmitIR bool
	// OptLevel is the llc optimization knob ("0" or "s").
	OptLevel string
}

// Signer implements the numbered signer provider scripts pull their signer
// parameters from.
func (o *Options) Signer(i int) (common.Address, error) {
	if i >= len(o.Signers) {
		return common.Address{}, fmt.Errorf("%w: script needs signer #%d, %d provided",
			ErrCompileSource, i, len(o.Signers))
	}
	return o.Signers[i], nil
}

// Artifacts is the result of translating a model: the per-module IR plus the
// native runtime module, ready for code generation and linking.
type Artifacts struct {
	Modules []*llvm.Module
	Native  *llvm.Module
	Exports *stackless.Exports
}

// Translate lowers every module of the model and generates the native
// runtime. Translation-time discrepancies abort the whole compile.
func Translate(g *model.Model, opts *Options) (*Artifacts, error) {
	ctx := llvm.NewContext()
	exports := stackless.NewExports()

	arts := &Artifacts{Exports: exports}
	for _, m := range g.Modules {
		mc := stackless.NewModuleContext(ctx, g, m, exports, opts)
		if err := mc.Translate(); err != nil {
			return nil, fmt.Errorf("%w: module %s: %v", ErrCompileSource, m.Name, err)
		}
		arts.Modules = append(arts.Modules, mc.IRModule())
	}

	gen := runtime.NewGenerator(ctx)
	if err := gen.Generate(); err != nil {
		return nil, fmt.Errorf("%w: native runtime: %v", ErrLLVM, err)
	}
	arts.Native = gen.Module()
	return arts, nil
}

// EmitObjects code-generates every artifact into outDir and returns the
// program object paths and the native runtime object path.
func EmitObjects(arts *Artifacts, outDir string, opts *Options) (objects []string, native string, err error) {
	tm, err := llvm.NewTargetMachine()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrLLVM, err)
	}
	if opts.OptLevel != "" {
		tm.OptLevel = opts.OptLevel
	}
	for _, m := range arts.Modules {
		obj := filepath.Join(outDir, m.Name+".o")
		if err := tm.EmitObject(m, obj); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrLLVM, err)
		}
		log.WithField("object", obj).Debug("emitted module object")
		objects = append(objects, obj)
	}
	native = filepath.Join(outDir, "move_native.o")
	if err := tm.EmitObject(arts.Native, native); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrLLVM, err)
	}
	return objects, native, nil
}
