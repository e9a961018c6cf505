// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package stackless

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/movechain/go-move/movelang/model"
	"github.com/movechain/go-move/movelang/rttydesc"
)

// hashString returns the 16-hex-digit big-endian digest a mangled symbol
// carries. FNV-64a keeps the digest stable across builds and processes.
func hashString(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// MangleFunction produces the linker symbol of a Move function:
// _ZN{len}{module}{len}{name}17h{hex16}E, where hex16 digests
// "{module}::{name}". Native functions keep their raw names and never go
// through here.
func MangleFunction(module, name string) string {
	return fmt.Sprintf("_ZN%d%s%d%s17h%sE",
		len(module), module, len(name), name, hashString(module+"::"+name))
}

// MangleMetadata produces the symbol of the export-metadata record that
// accompanies an exported function.
func MangleMetadata(module, name string) string {
	return fmt.Sprintf("_ZN%d%s%d%s8METADATA17h%sE",
		len(module), module, len(name), name, hashString("METADATA"))
}

// StructTypeName names the lowered aggregate of a concrete struct
// instantiation: {module}__{struct}, suffixed with the mangling of each type
// argument.
func StructTypeName(module, name string, typeArgs []model.Type) string {
	var sb strings.Builder
	sb.WriteString(module)
	sb.WriteString("__")
	sb.WriteString(name)
	for _, a := range typeArgs {
		sb.WriteString("_")
		sb.WriteString(rttydesc.TypeMangle(a))
	}
	return sb.String()
}

// qualifiedName joins module and function the way fn_decls keys are formed.
func qualifiedName(module, name string) string {
	return module + "::" + name
}

// instantiationKey identifies a concrete function instantiation.
func instantiationKey(module, name string, typeArgs []model.Type) string {
	var sb strings.Builder
	sb.WriteString(qualifiedName(module, name))
	for _, a := range typeArgs {
		sb.WriteString("$")
		sb.WriteString(rttydesc.TypeMangle(a))
	}
	return sb.String()
}
