package ptb

import (
	"fmt"

	"suiml.io/suiml/bcs"
	"suiml.io/suiml/errs"
	"suiml.io/suiml/sui"
)

// Protocol limits checked before submission.
const (
	MaxCommands    = 1024
	MaxInputs      = 2048
	MaxPureArgSize = 16 * 1024
)

// Builder accumulates inputs and commands. Errors are sticky: the first one
// is returned by Finish and later calls are ignored.
type Builder struct {
	inputs   []CallArg
	pureIdx  map[string]uint16
	objIdx   map[sui.ObjectID]uint16
	commands []Command
	err      error
}

func NewBuilder() *Builder {
	return &Builder{
		pureIdx: map[string]uint16{},
		objIdx:  map[sui.ObjectID]uint16{},
	}
}

func (b *Builder) fail(err error) Argument {
	if b.err == nil {
		b.err = err
	}
	return Argument{}
}

func (b *Builder) addInput(in CallArg) (uint16, bool) {
	if len(b.inputs) >= MaxInputs {
		b.fail(errs.New(errs.KindValidation, errs.CodeInvalidInput,
			fmt.Sprintf("transaction exceeds %d inputs", MaxInputs)))
		return 0, false
	}
	b.inputs = append(b.inputs, in)
	return uint16(len(b.inputs) - 1), true
}

// Pure adds a BCS-encoded pure input. Identical bytes share one input.
func (b *Builder) Pure(value []byte) Argument {
	if b.err != nil {
		return Argument{}
	}
	if len(value) > MaxPureArgSize {
		return b.fail(errs.New(errs.KindValidation, errs.CodeInvalidInput,
			fmt.Sprintf("pure argument of %d bytes exceeds %d", len(value), MaxPureArgSize)))
	}
	key := string(value)
	if i, ok := b.pureIdx[key]; ok {
		return Input(i)
	}
	i, ok := b.addInput(CallArg{Pure: append([]byte(nil), value...)})
	if !ok {
		return Argument{}
	}
	b.pureIdx[key] = i
	return Input(i)
}

func (b *Builder) PureU64(v uint64) Argument { return b.Pure(bcs.PureU64(v)) }

func (b *Builder) PureU64Vector(v []uint64) Argument {
	raw, err := bcs.PureU64Vector(v)
	if err != nil {
		return b.fail(err)
	}
	return b.Pure(raw)
}

func (b *Builder) PureU64Matrix(v [][]uint64) Argument {
	raw, err := bcs.PureU64Matrix(v)
	if err != nil {
		return b.fail(err)
	}
	return b.Pure(raw)
}

func (b *Builder) PureString(s string) Argument {
	raw, err := bcs.PureString(s)
	if err != nil {
		return b.fail(err)
	}
	return b.Pure(raw)
}

// Object adds an object input. An object referenced twice shares one input;
// a shared object becomes mutable if any use asks for mutability.
func (b *Builder) Object(arg ObjectArg) Argument {
	if b.err != nil {
		return Argument{}
	}
	if arg.ImmOrOwned == nil && arg.Shared == nil {
		return b.fail(fmt.Errorf("ptb: empty object argument"))
	}
	id := arg.ID()
	if i, ok := b.objIdx[id]; ok {
		prev := b.inputs[i].Object
		if prev.Shared != nil && arg.Shared != nil && arg.Shared.Mutable && !prev.Shared.Mutable {
			shared := *prev.Shared
			shared.Mutable = true
			b.inputs[i].Object = &ObjectArg{Shared: &shared}
		}
		return Input(i)
	}
	cp := arg
	i, ok := b.addInput(CallArg{Object: &cp})
	if !ok {
		return Argument{}
	}
	b.objIdx[id] = i
	return Input(i)
}

// MoveCall appends a call to target and returns its result.
func (b *Builder) MoveCall(target MoveTarget, args ...Argument) Argument {
	if b.err != nil {
		return Argument{}
	}
	if len(b.commands) >= MaxCommands {
		return b.fail(errs.New(errs.KindValidation, errs.CodeInvalidInput,
			fmt.Sprintf("transaction exceeds %d commands", MaxCommands)))
	}
	for _, a := range args {
		if err := b.checkArgument(a); err != nil {
			return b.fail(err)
		}
	}
	b.commands = append(b.commands, Command{MoveCall: &MoveCall{
		Target:    target,
		Arguments: append([]Argument(nil), args...),
	}})
	return Result(uint16(len(b.commands) - 1))
}

// checkArgument rejects references to inputs or results that do not exist yet.
func (b *Builder) checkArgument(a Argument) error {
	switch a.Kind {
	case ArgGasCoin:
		return nil
	case ArgInput:
		if int(a.Index) >= len(b.inputs) {
			return fmt.Errorf("ptb: %s refers to a missing input", a)
		}
	case ArgResult, ArgNestedResult:
		if int(a.Index) >= len(b.commands) {
			return fmt.Errorf("ptb: %s refers to a later command", a)
		}
	default:
		return fmt.Errorf("ptb: unknown argument kind %d", a.Kind)
	}
	return nil
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error { return b.err }

// Commands reports how many commands have been added.
func (b *Builder) Commands() int { return len(b.commands) }

// Finish returns the built transaction. The builder must not be reused.
func (b *Builder) Finish() (ProgrammableTransaction, error) {
	if b.err != nil {
		return ProgrammableTransaction{}, b.err
	}
	if len(b.commands) == 0 {
		return ProgrammableTransaction{}, errs.New(errs.KindValidation, errs.CodeInvalidInput, "transaction has no commands")
	}
	pt := ProgrammableTransaction{
		Inputs:   make([]CallArg, len(b.inputs)),
		Commands: make([]Command, len(b.commands)),
	}
	copy(pt.Inputs, b.inputs)
	copy(pt.Commands, b.commands)
	return pt, nil
}
