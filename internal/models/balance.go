package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceEntry is one account from /account/balances.
type BalanceEntry struct {
	ActorID string          `json:"actor_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// Balances lists accounts in the order the server sent them.
type Balances []BalanceEntry

// UnmarshalJSON decodes {"actor": 12.5, ...} preserving key order.
func (b *Balances) UnmarshalJSON(data []byte) error {
	var out Balances
	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		if isNull(raw) {
			return missingField("balance for " + key)
		}
		var amount decimal.Decimal
		if err := amount.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%w: balance for %s: %v", ErrMalformed, key, err)
		}
		out = append(out, BalanceEntry{ActorID: key, Amount: amount})
		return nil
	})
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// DecodeBalances decodes an /account/balances body.
func DecodeBalances(body []byte) (Balances, error) {
	var b Balances
	if err := b.UnmarshalJSON(body); err != nil {
		return nil, err
	}
	return b, nil
}

// SortedDesc returns a copy ordered by non-increasing amount. Equal amounts
// keep their source order.
func (b Balances) SortedDesc() Balances {
	out := make(Balances, len(b))
	copy(out, b)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.GreaterThan(out[j].Amount)
	})
	return out
}
