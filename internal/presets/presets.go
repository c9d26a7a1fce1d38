// Package presets provides ready-made example transactions.
package presets

import (
	"fmt"
	"sort"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Preset names.
const (
	Normal     = "normal"
	Suspicious = "suspicious"
)

// Preset is a named example transaction.
type Preset struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Input       domain.TransactionInput `json:"input"`
}

var builders = map[string]func() Preset{
	Normal: func() Preset {
		return Preset{
			Name:        Normal,
			Description: "Routine payment with consistent balances",
			Input: domain.TransactionInput{
				Step:           1,
				Type:           domain.TxPayment,
				Amount:         500,
				OldBalanceOrg:  10_000,
				NewBalanceOrig: 9_500,
				OldBalanceDest: 2_000,
				NewBalanceDest: 2_500,
			},
		}
	},
	Suspicious: func() Preset {
		return Preset{
			Name:        Suspicious,
			Description: "Large transfer that empties the origin account into an empty receiver",
			Input: domain.TransactionInput{
				Step:           1,
				Type:           domain.TxTransfer,
				Amount:         1_810_000,
				OldBalanceOrg:  1_810_000,
				NewBalanceOrig: 0,
				OldBalanceDest: 0,
				NewBalanceDest: 0,
			},
		}
	},
}

// Get returns a freshly built preset; callers may modify it freely.
func Get(name string) (Preset, error) {
	build, ok := builders[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: preset %q", domain.ErrNotFound, name)
	}
	return build(), nil
}

// Names lists the available presets in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every preset, sorted by name.
func All() []Preset {
	names := Names()
	out := make([]Preset, len(names))
	for i, name := range names {
		out[i] = builders[name]()
	}
	return out
}
