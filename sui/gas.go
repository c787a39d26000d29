package sui

import (
	"context"
	"fmt"
	"sort"

	"suiml.io/suiml/errs"
)

// MaxGasObjects is the protocol limit on gas payment coins per transaction.
const MaxGasObjects = 256

// CoinSource lists coins owned by an address. *Client satisfies it.
type CoinSource interface {
	Coins(ctx context.Context, owner Address, coinType string, cursor *string, limit int) (CoinPage, error)
}

// SelectGas picks SUI coins owned by owner, largest first, until their
// balance covers budget. Coins listed in exclude are never chosen.
func SelectGas(ctx context.Context, src CoinSource, owner Address, budget uint64, exclude map[ObjectID]bool) ([]ObjectRef, error) {
	var coins []Coin
	var cursor *string
	for {
		page, err := src.Coins(ctx, owner, SuiCoinType, cursor, 0)
		if err != nil {
			return nil, err
		}
		for _, c := range page.Data {
			if !exclude[c.CoinObjectID] {
				coins = append(coins, c)
			}
		}
		if !page.HasNextPage || page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}

	sort.SliceStable(coins, func(i, j int) bool { return coins[i].Balance > coins[j].Balance })

	var (
		total uint64
		refs  []ObjectRef
	)
	for _, c := range coins {
		if len(refs) == MaxGasObjects {
			break
		}
		refs = append(refs, c.Ref())
		total += uint64(c.Balance)
		if total >= budget {
			return refs, nil
		}
	}
	return nil, errs.New(errs.KindChain, errs.CodeInsufficientGas,
		fmt.Sprintf("address %s has %s SUI in %d usable coins, budget is %s SUI",
			owner, FormatMIST(total), len(refs), FormatMIST(budget)))
}
