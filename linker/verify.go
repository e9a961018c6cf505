// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// Blob verification: structural checks the packer output must pass before it
// reaches a loader, ensuring loader-level properties hold even if the packer
// has bugs.

package linker

import (
	"fmt"

	"github.com/movechain/go-move/movelang/runtime"
)

// VerifyError describes one blob verification failure.
type VerifyError struct {
	Section string
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify error in %s: %s", e.Section, e.Message)
}

// VerifyBlob checks a program blob:
//  1. The container round-trips through the parser.
//  2. Every import is in the allowed host import set.
//  3. Export names are unique and non-empty.
//  4. The code section is non-empty and padded to instruction granularity.
func VerifyBlob(data []byte) []VerifyError {
	var errs []VerifyError

	blob, err := ParseBlob(data)
	if err != nil {
		return []VerifyError{{Section: "container", Message: err.Error()}}
	}

	allowed := make(map[string]bool, len(runtime.HostImports))
	for _, name := range runtime.HostImports {
		allowed[name] = true
	}
	for _, imp := range blob.Imports {
		if !allowed[imp] {
			errs = append(errs, VerifyError{
				Section: "imports",
				Message: fmt.Sprintf("import %q is not a known host function", imp),
			})
		}
	}

	seen := make(map[string]bool)
	for _, e := range blob.Exports {
		if e.Name == "" {
			errs = append(errs, VerifyError{Section: "exports", Message: "empty export name"})
			continue
		}
		if seen[e.Name] {
			errs = append(errs, VerifyError{
				Section: "exports",
				Message: fmt.Sprintf("duplicate export %q", e.Name),
			})
		}
		seen[e.Name] = true
	}

	if len(blob.Code) == 0 {
		errs = append(errs, VerifyError{Section: "code", Message: "empty code section"})
	} else if len(blob.Code)%2 != 0 {
		// Compressed RISC-V instructions are 2-byte aligned.
		errs = append(errs, VerifyError{
			Section: "code",
			Message: fmt.Sprintf("code size %d is not instruction aligned", len(blob.Code)),
		})
	}

	return errs
}
