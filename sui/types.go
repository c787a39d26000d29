package sui

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// BigUint is a u64 that Sui JSON encodes as a decimal string. Plain JSON
// numbers are accepted too.
type BigUint uint64

func (u BigUint) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

func (u *BigUint) UnmarshalJSON(b []byte) error {
	v, err := ParseU64JSON(b)
	if err != nil {
		return err
	}
	*u = BigUint(v)
	return nil
}

// ParseU64JSON decodes a u64 given as a JSON string or number.
func ParseU64JSON(b []byte) (uint64, error) {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
	} else {
		s = string(b)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sui: invalid u64 %s", b)
	}
	return v, nil
}

// Coin is one entry of suix_getCoins.
type Coin struct {
	CoinType     string   `json:"coinType"`
	CoinObjectID ObjectID `json:"coinObjectId"`
	Version      BigUint  `json:"version"`
	Digest       Digest   `json:"digest"`
	Balance      BigUint  `json:"balance"`
}

func (c Coin) Ref() ObjectRef {
	return ObjectRef{ObjectID: c.CoinObjectID, Version: uint64(c.Version), Digest: c.Digest}
}

type CoinPage struct {
	Data        []Coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// Owner is the ownership of an object. Exactly one field is set.
type Owner struct {
	AddressOwner *Address
	ObjectOwner  *Address
	Shared       *SharedOwner
	Immutable    bool
}

type SharedOwner struct {
	InitialSharedVersion BigUint `json:"initial_shared_version"`
}

func (o *Owner) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != "Immutable" {
			return fmt.Errorf("sui: unknown owner %q", s)
		}
		*o = Owner{Immutable: true}
		return nil
	}
	var raw struct {
		AddressOwner *Address     `json:"AddressOwner"`
		ObjectOwner  *Address     `json:"ObjectOwner"`
		Shared       *SharedOwner `json:"Shared"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.AddressOwner == nil && raw.ObjectOwner == nil && raw.Shared == nil {
		return fmt.Errorf("sui: unknown owner %s", b)
	}
	*o = Owner{AddressOwner: raw.AddressOwner, ObjectOwner: raw.ObjectOwner, Shared: raw.Shared}
	return nil
}

func (o Owner) MarshalJSON() ([]byte, error) {
	switch {
	case o.Immutable:
		return json.Marshal("Immutable")
	case o.Shared != nil:
		return json.Marshal(map[string]any{"Shared": o.Shared})
	case o.ObjectOwner != nil:
		return json.Marshal(map[string]any{"ObjectOwner": o.ObjectOwner})
	default:
		return json.Marshal(map[string]any{"AddressOwner": o.AddressOwner})
	}
}

// ObjectData is the subset of sui_getObject used here.
type ObjectData struct {
	ObjectID ObjectID `json:"objectId"`
	Version  BigUint  `json:"version"`
	Digest   Digest   `json:"digest"`
	Type     string   `json:"type,omitempty"`
	Owner    *Owner   `json:"owner,omitempty"`
}

func (d ObjectData) Ref() ObjectRef {
	return ObjectRef{ObjectID: d.ObjectID, Version: uint64(d.Version), Digest: d.Digest}
}

type objectResponse struct {
	Data  *ObjectData     `json:"data"`
	Error json.RawMessage `json:"error"`
}

// MoveFunction is the normalized signature of a Move function. Parameter
// types are kept raw; only reference mutability is inspected.
type MoveFunction struct {
	Visibility string            `json:"visibility"`
	IsEntry    bool              `json:"isEntry"`
	Parameters []json.RawMessage `json:"parameters"`
	Return     []json.RawMessage `json:"return"`
}

// ParamMutable reports whether parameter i is taken by mutable reference.
func (f MoveFunction) ParamMutable(i int) bool {
	if i < 0 || i >= len(f.Parameters) {
		return false
	}
	var ref map[string]json.RawMessage
	if err := json.Unmarshal(f.Parameters[i], &ref); err != nil {
		return false
	}
	_, ok := ref["MutableReference"]
	return ok
}

// ParamByValue reports whether parameter i is taken by value (not a reference).
func (f MoveFunction) ParamByValue(i int) bool {
	if i < 0 || i >= len(f.Parameters) {
		return false
	}
	var ref map[string]json.RawMessage
	if err := json.Unmarshal(f.Parameters[i], &ref); err != nil {
		return true
	}
	_, mut := ref["MutableReference"]
	_, imm := ref["Reference"]
	return !mut && !imm
}

// ExecuteOptions selects what sui_executeTransactionBlock returns.
type ExecuteOptions struct {
	ShowInput          bool `json:"showInput,omitempty"`
	ShowEffects        bool `json:"showEffects,omitempty"`
	ShowEvents         bool `json:"showEvents,omitempty"`
	ShowObjectChanges  bool `json:"showObjectChanges,omitempty"`
	ShowBalanceChanges bool `json:"showBalanceChanges,omitempty"`
}

// RequestType is the execution wait mode.
type RequestType string

const (
	WaitForEffectsCert    RequestType = "WaitForEffectsCert"
	WaitForLocalExecution RequestType = "WaitForLocalExecution"
)

type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s ExecutionStatus) Succeeded() bool { return s.Status == "success" }

type OwnedObjectRef struct {
	Owner     Owner     `json:"owner"`
	Reference ObjectRef `json:"reference"`
}

// objectRefJSON matches the effects encoding, where version is a number.
type objectRefJSON struct {
	ObjectID ObjectID `json:"objectId"`
	Version  BigUint  `json:"version"`
	Digest   Digest   `json:"digest"`
}

func (r *ObjectRef) UnmarshalJSON(b []byte) error {
	var v objectRefJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = ObjectRef{ObjectID: v.ObjectID, Version: uint64(v.Version), Digest: v.Digest}
	return nil
}

type GasCostSummary struct {
	ComputationCost BigUint `json:"computationCost"`
	StorageCost     BigUint `json:"storageCost"`
	StorageRebate   BigUint `json:"storageRebate"`
}

// Total is computation + storage - rebate, floored at zero.
func (g GasCostSummary) Total() uint64 {
	spent := uint64(g.ComputationCost) + uint64(g.StorageCost)
	if uint64(g.StorageRebate) > spent {
		return 0
	}
	return spent - uint64(g.StorageRebate)
}

type Effects struct {
	Status  ExecutionStatus  `json:"status"`
	GasUsed GasCostSummary   `json:"gasUsed"`
	Created []OwnedObjectRef `json:"created,omitempty"`
	Mutated []OwnedObjectRef `json:"mutated,omitempty"`
}

// Event is a Move event as returned with showEvents.
type Event struct {
	PackageID         ObjectID        `json:"packageId"`
	TransactionModule string          `json:"transactionModule"`
	Sender            Address         `json:"sender"`
	Type              string          `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsedJson"`
}

type TransactionResponse struct {
	Digest  string   `json:"digest"`
	Effects *Effects `json:"effects,omitempty"`
	Events  []Event  `json:"events,omitempty"`
}
