// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// Package model defines the verified Move model the compiler consumes:
// modules, functions, structs, types and the stackless bytecode of each
// function body. The front-end that builds a model from Move source is a
// separate concern; the compiler and its tests operate purely on this
// representation.
package model

import (
	"fmt"

	"github.com/movechain/go-move/common"
)

// Module is a named container of functions and structs; the compilation unit.
type Module struct {
	Address   common.Address
	Name      string
	IsScript  bool
	Structs   []*Struct
	Functions []*Function
}

// FullName returns the qualified module name with its declaring address, as
// the Move model prints it (short hex address form).
func (m *Module) FullName() string {
	return fmt.Sprintf("0x%x::%s", m.Address.Big(), m.Name)
}

// FindStruct returns the struct declared under name, or nil.
func (m *Module) FindStruct(name string) *Struct {
	for _, s := range m.Structs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FindFunction returns the function declared under name, or nil.
func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Ability is a Move type ability.
type Ability uint8

const (
	AbilityCopy Ability = 1 << iota
	AbilityDrop
	AbilityStore
	AbilityKey
)

// Struct is a Move struct declaration. Generic structs carry TypeParams > 0
// and are only materialized through concrete instantiations.
type Struct struct {
	Name       string
	Abilities  Ability
	TypeParams int
	Fields     []Field
}

// Field is a single struct field.
type Field struct {
	Name string
	Type Type
}

// Function is a Move function declaration together with its stackless body.
//
// Locals 0..len(Params)-1 hold the parameters; LocalTypes covers every local
// including parameters and compiler temporaries.
type Function struct {
	Name       string
	Params     []Type
	Returns    []Type
	TypeParams int
	IsEntry    bool
	IsNative   bool
	IsInline   bool
	LocalTypes []Type
	Code       []Bytecode
}

// Model is the root of a verified Move program: the target modules plus every
// dependency module reachable from them.
type Model struct {
	Modules []*Module
}

// FindModule returns the module declared under name, or nil.
func (g *Model) FindModule(name string) *Module {
	for _, m := range g.Modules {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FindFunction resolves module::function, or nil.
func (g *Model) FindFunction(module, name string) (*Module, *Function) {
	m := g.FindModule(module)
	if m == nil {
		return nil, nil
	}
	return m, m.FindFunction(name)
}

// FindStruct resolves module::struct, or nil.
func (g *Model) FindStruct(module, name string) (*Module, *Struct) {
	m := g.FindModule(module)
	if m == nil {
		return nil, nil
	}
	return m, m.FindStruct(name)
}
