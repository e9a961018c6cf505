// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// Package linker merges the compiled module objects with the native runtime
// object and transforms the result into the program blob the VM loader
// consumes.
package linker

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	log "github.com/sirupsen/logrus"
)

// ErrLink marks an object merge or ELF-to-blob conversion failure.
var ErrLink = errors.New("linker: link failed")

// Lld drives an external ld.lld for relocatable merges.
type Lld struct {
	path string
}

// NewLld locates ld.lld in PATH.
func NewLld() (*Lld, error) {
	path, err := exec.LookPath("ld.lld")
	if err != nil {
		return nil, fmt.Errorf("%w: no ld.lld in PATH: %v", ErrLink, err)
	}
	return &Lld{path: path}, nil
}

// MergeObjectFiles merges sources into one relocatable object at output.
// gcSections strips unreferenced sections first; it is essential on the
// final merge with the native runtime, which would otherwise drag along
// compiler-injected symbols (atomics among them) that fail the VM link.
func (l *Lld) MergeObjectFiles(sources []string, output string, gcSections bool) error {
	args := []string{}
	if gcSections {
		args = append(args, "--gc-sections")
	}
	args = append(args, "-r", "-o", output)
	args = append(args, sources...)
	log.Debugf("ld.lld %v", args)
	out, err := exec.Command(l.path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: ld.lld: %v: %s", ErrLink, err, out)
	}
	return nil
}

// LinkProgram runs the two-step merge: the module objects first (no
// gc-sections), then the native runtime object with gc-sections on, and
// converts the merged ELF into a program blob written to output.
func LinkProgram(objects []string, nativeObject, output string) error {
	lld, err := NewLld()
	if err != nil {
		return err
	}
	outDir := filepath.Dir(output)
	program := filepath.Join(outDir, "program.o")
	if err := lld.MergeObjectFiles(objects, program, false); err != nil {
		return err
	}
	merged := filepath.Join(outDir, "merged.o")
	if err := lld.MergeObjectFiles([]string{program, nativeObject}, merged, true); err != nil {
		return err
	}
	log.WithField("object", merged).Debug("merged object created")

	blob, err := BlobFromELFFile(merged)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, blob, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrLink, err)
	}
	log.WithFields(log.Fields{"blob": output, "size": len(blob)}).Debug("program blob written")
	return nil
}

// BlobFromELFFile maps the merged object and converts it. The mapping avoids
// copying what is typically the largest intermediate of a build.
func BlobFromELFFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLink, err)
	}
	defer f.Close()
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrLink, err)
	}
	defer data.Unmap()
	return BlobFromELF(data)
}
