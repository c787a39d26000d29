package ptb

import (
	"fmt"

	"suiml.io/suiml/bcs"
	"suiml.io/suiml/sui"
)

// ArgumentKind tags an Argument. The values are the BCS variant indices.
type ArgumentKind uint8

const (
	ArgGasCoin ArgumentKind = iota
	ArgInput
	ArgResult
	ArgNestedResult
)

func (k ArgumentKind) String() string {
	switch k {
	case ArgGasCoin:
		return "GasCoin"
	case ArgInput:
		return "Input"
	case ArgResult:
		return "Result"
	case ArgNestedResult:
		return "NestedResult"
	default:
		return fmt.Sprintf("ArgumentKind(%d)", uint8(k))
	}
}

// Argument refers to a value available to a command.
type Argument struct {
	Kind  ArgumentKind
	Index uint16
	Sub   uint16 // element of a multi-value result; NestedResult only
}

func GasCoin() Argument                 { return Argument{Kind: ArgGasCoin} }
func Input(i uint16) Argument           { return Argument{Kind: ArgInput, Index: i} }
func Result(i uint16) Argument          { return Argument{Kind: ArgResult, Index: i} }
func NestedResult(i, j uint16) Argument { return Argument{Kind: ArgNestedResult, Index: i, Sub: j} }

// Nested selects element j of a command result. It panics on arguments that
// are not results, which is always a programming error.
func (a Argument) Nested(j uint16) Argument {
	if a.Kind != ArgResult && a.Kind != ArgNestedResult {
		panic(fmt.Sprintf("ptb: Nested on %s argument", a.Kind))
	}
	return NestedResult(a.Index, j)
}

func (a Argument) String() string {
	switch a.Kind {
	case ArgGasCoin:
		return "GasCoin"
	case ArgNestedResult:
		return fmt.Sprintf("NestedResult(%d,%d)", a.Index, a.Sub)
	default:
		return fmt.Sprintf("%s(%d)", a.Kind, a.Index)
	}
}

func (a Argument) MarshalBCS(e *bcs.Encoder) error {
	e.U8(uint8(a.Kind))
	switch a.Kind {
	case ArgGasCoin:
	case ArgInput, ArgResult:
		e.U16(a.Index)
	case ArgNestedResult:
		e.U16(a.Index)
		e.U16(a.Sub)
	default:
		return fmt.Errorf("ptb: unknown argument kind %d", a.Kind)
	}
	return nil
}

// ObjectArg is an object input: either an owned/immutable object pinned to a
// version, or a shared object identified by its initial shared version.
type ObjectArg struct {
	ImmOrOwned *sui.ObjectRef
	Shared     *SharedObject
}

type SharedObject struct {
	ID                   sui.ObjectID
	InitialSharedVersion uint64
	Mutable              bool
}

func ImmOrOwnedObject(ref sui.ObjectRef) ObjectArg { return ObjectArg{ImmOrOwned: &ref} }

func SharedObjectArg(id sui.ObjectID, initialVersion uint64, mutable bool) ObjectArg {
	return ObjectArg{Shared: &SharedObject{ID: id, InitialSharedVersion: initialVersion, Mutable: mutable}}
}

// ID returns the object id of either variant.
func (o ObjectArg) ID() sui.ObjectID {
	if o.Shared != nil {
		return o.Shared.ID
	}
	if o.ImmOrOwned != nil {
		return o.ImmOrOwned.ObjectID
	}
	return sui.ObjectID{}
}

func (o ObjectArg) MarshalBCS(e *bcs.Encoder) error {
	switch {
	case o.ImmOrOwned != nil:
		e.U8(0)
		return o.ImmOrOwned.MarshalBCS(e)
	case o.Shared != nil:
		e.U8(1)
		if err := o.Shared.ID.MarshalBCS(e); err != nil {
			return err
		}
		e.U64(o.Shared.InitialSharedVersion)
		e.Bool(o.Shared.Mutable)
		return nil
	default:
		return fmt.Errorf("ptb: empty object argument")
	}
}

// CallArg is a transaction input.
type CallArg struct {
	Pure   []byte
	Object *ObjectArg
}

func (c CallArg) MarshalBCS(e *bcs.Encoder) error {
	if c.Object != nil {
		e.U8(1)
		return c.Object.MarshalBCS(e)
	}
	e.U8(0)
	return e.ByteVector(c.Pure)
}
