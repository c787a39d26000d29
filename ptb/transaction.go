package ptb

import (
	"fmt"

	"suiml.io/suiml/bcs"
	"suiml.io/suiml/errs"
	"suiml.io/suiml/sui"
)

// MaxTransactionSize is the largest serialized transaction a node accepts.
const MaxTransactionSize = 128 * 1024

type GasData struct {
	Payment []sui.ObjectRef
	Owner   sui.Address
	Price   uint64
	Budget  uint64
}

func (g GasData) MarshalBCS(e *bcs.Encoder) error {
	if err := e.Length(len(g.Payment)); err != nil {
		return err
	}
	for _, ref := range g.Payment {
		if err := ref.MarshalBCS(e); err != nil {
			return err
		}
	}
	if err := g.Owner.MarshalBCS(e); err != nil {
		return err
	}
	e.U64(g.Price)
	e.U64(g.Budget)
	return nil
}

// TransactionData is the signed payload (TransactionData::V1 with a
// programmable transaction kind). A nil Expiration means none.
type TransactionData struct {
	Kind       ProgrammableTransaction
	Sender     sui.Address
	Gas        GasData
	Expiration *uint64
}

const (
	transactionDataV1 = 0
	kindProgrammable  = 0
	expirationNone    = 0
	expirationEpoch   = 1
)

func (t TransactionData) MarshalBCS(e *bcs.Encoder) error {
	e.U8(transactionDataV1)
	e.U8(kindProgrammable)
	if err := t.Kind.MarshalBCS(e); err != nil {
		return err
	}
	if err := t.Sender.MarshalBCS(e); err != nil {
		return err
	}
	if err := t.Gas.MarshalBCS(e); err != nil {
		return err
	}
	if t.Expiration == nil {
		e.U8(expirationNone)
		return nil
	}
	e.U8(expirationEpoch)
	e.U64(*t.Expiration)
	return nil
}

// Bytes serializes t for signing and submission.
func (t TransactionData) Bytes() ([]byte, error) {
	if len(t.Gas.Payment) == 0 {
		return nil, errs.New(errs.KindChain, errs.CodeInsufficientGas, "transaction has no gas payment")
	}
	b, err := bcs.Marshal(t)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, errs.CodeInvalidInput, "serialize transaction", err)
	}
	if len(b) > MaxTransactionSize {
		return nil, errs.New(errs.KindValidation, errs.CodeInvalidInput,
			fmt.Sprintf("transaction is %d bytes, limit is %d", len(b), MaxTransactionSize))
	}
	return b, nil
}
