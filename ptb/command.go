package ptb

import (
	"fmt"
	"strings"

	"suiml.io/suiml/bcs"
	"suiml.io/suiml/sui"
)

// MoveTarget names a Move function as package::module::function.
type MoveTarget struct {
	Package  sui.ObjectID
	Module   string
	Function string
}

// ParseMoveTarget parses "0xpkg::module::function".
func ParseMoveTarget(s string) (MoveTarget, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return MoveTarget{}, fmt.Errorf("ptb: invalid move target %q", s)
	}
	pkg, err := sui.ParseAddress(parts[0])
	if err != nil {
		return MoveTarget{}, fmt.Errorf("ptb: invalid move target %q: %w", s, err)
	}
	return MoveTarget{Package: pkg, Module: parts[1], Function: parts[2]}, nil
}

func (t MoveTarget) String() string {
	return t.Package.String() + "::" + t.Module + "::" + t.Function
}

// Command is one step of a programmable transaction. Only Move calls are
// built here.
type Command struct {
	MoveCall *MoveCall
}

// MoveCall invokes a Move function. Type arguments are carried verbatim as
// BCS-encoded type tags.
type MoveCall struct {
	Target    MoveTarget
	TypeArgs  [][]byte
	Arguments []Argument
}

const commandMoveCall = 0

func (c Command) MarshalBCS(e *bcs.Encoder) error {
	if c.MoveCall == nil {
		return fmt.Errorf("ptb: empty command")
	}
	e.U8(commandMoveCall)
	return c.MoveCall.MarshalBCS(e)
}

func (m MoveCall) MarshalBCS(e *bcs.Encoder) error {
	if err := m.Target.Package.MarshalBCS(e); err != nil {
		return err
	}
	if err := e.String(m.Target.Module); err != nil {
		return err
	}
	if err := e.String(m.Target.Function); err != nil {
		return err
	}
	if err := e.Length(len(m.TypeArgs)); err != nil {
		return err
	}
	for _, tag := range m.TypeArgs {
		e.FixedBytes(tag)
	}
	if err := e.Length(len(m.Arguments)); err != nil {
		return err
	}
	for _, a := range m.Arguments {
		if err := a.MarshalBCS(e); err != nil {
			return err
		}
	}
	return nil
}

// ProgrammableTransaction is the finished input and command lists.
type ProgrammableTransaction struct {
	Inputs   []CallArg
	Commands []Command
}

func (p ProgrammableTransaction) MarshalBCS(e *bcs.Encoder) error {
	if err := e.Length(len(p.Inputs)); err != nil {
		return err
	}
	for _, in := range p.Inputs {
		if err := in.MarshalBCS(e); err != nil {
			return err
		}
	}
	if err := e.Length(len(p.Commands)); err != nil {
		return err
	}
	for _, c := range p.Commands {
		if err := c.MarshalBCS(e); err != nil {
			return err
		}
	}
	return nil
}
