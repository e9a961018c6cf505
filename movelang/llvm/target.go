// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package llvm

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// ErrNoCodegen is returned when no llc binary can be located.
var ErrNoCodegen = errors.New("llvm: no llc in PATH")

// TargetPlatform describes the one code generation target supported: the
// PolkaVM 32-bit RISC-V profile.
type TargetPlatform struct{}

// Triple returns the LLVM target triple.
func (TargetPlatform) Triple() string { return "riscv32-unknown-none-elf" }

// CPU returns the llc CPU name.
func (TargetPlatform) CPU() string { return "generic-rv32" }

// Features returns the ISA feature string (rv32emac).
func (TargetPlatform) Features() string { return "+e,+m,+a,+c" }

// TargetMachine turns emitted IR into relocatable objects by driving an
// external llc. The library is a black box: everything up to the .ll text is
// this package's responsibility, everything after is llc's.
type TargetMachine struct {
	llc      string
	platform TargetPlatform
	// OptLevel is passed through as -O; only size/opt knobs, never
	// semantic optimization choices.
	OptLevel string
}

// NewTargetMachine locates llc and prepares a machine for the PolkaVM target.
func NewTargetMachine() (*TargetMachine, error) {
	path, err := exec.LookPath("llc")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCodegen, err)
	}
	return &TargetMachine{llc: path, OptLevel: "0"}, nil
}

// Platform returns the fixed code generation target.
func (tm *TargetMachine) Platform() TargetPlatform { return tm.platform }

// WriteIR renders the module to path as textual IR.
func (tm *TargetMachine) WriteIR(m *Module, path string) error {
	m.Triple = tm.platform.Triple()
	return os.WriteFile(path, []byte(m.Emit()), 0o644)
}

// EmitObject verifies the module, renders it next to the output and runs llc
// to produce a relocatable object at objPath.
func (tm *TargetMachine) EmitObject(m *Module, objPath string) error {
	if err := m.Verify(); err != nil {
		return err
	}
	irPath := objPath[:len(objPath)-len(filepath.Ext(objPath))] + ".ll"
	if err := tm.WriteIR(m, irPath); err != nil {
		return err
	}
	args := []string{
		"-mtriple=" + tm.platform.Triple(),
		"-mcpu=" + tm.platform.CPU(),
		"-mattr=" + tm.platform.Features(),
		"-filetype=obj",
		"-O" + tm.OptLevel,
		"-o", objPath,
		irPath,
	}
	log.WithField("module", m.Name).Debugf("llc %v", args)
	cmd := exec.Command(tm.llc, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("llvm: llc failed for %s: %v: %s", m.Name, err, out)
	}
	return nil
}
