package domain

import (
	"fmt"
	"math"
)

// TxType is the PaySim transaction type.
type TxType string

const (
	TxCashIn   TxType = "CASH_IN"
	TxCashOut  TxType = "CASH_OUT"
	TxDebit    TxType = "DEBIT"
	TxPayment  TxType = "PAYMENT"
	TxTransfer TxType = "TRANSFER"
)

// TxTypes lists every accepted transaction type in lexicographic order.
var TxTypes = []TxType{TxCashIn, TxCashOut, TxDebit, TxPayment, TxTransfer}

// Valid reports whether t is one of the enumerated transaction types.
func (t TxType) Valid() bool {
	for _, known := range TxTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TransactionInput describes one transaction to be scored.
type TransactionInput struct {
	// Step is the elapsed time unit since the start of the simulation window.
	Step int `json:"step"`

	Type TxType `json:"type"`

	// Financial details, all in the currency unit the classifier was trained on
	Amount         float64 `json:"amount"`
	OldBalanceOrg  float64 `json:"oldBalanceOrg"`
	NewBalanceOrig float64 `json:"newBalanceOrig"`
	OldBalanceDest float64 `json:"oldBalanceDest"`
	NewBalanceDest float64 `json:"newBalanceDest"`

	// IsFlaggedFraud is always false at input time. It exists because the
	// classifier schema carries the column.
	IsFlaggedFraud bool `json:"isFlaggedFraud"`
}

// Validate checks the type enumeration and the numeric invariants.
func (t TransactionInput) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidInput, t.Type)
	}
	if t.Step < 1 {
		return fmt.Errorf("%w: step must be >= 1, got %d", ErrInvalidInput, t.Step)
	}

	for _, f := range t.monetaryFields() {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidInput, f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidInput, f.name, f.value)
		}
	}
	return nil
}

type namedValue struct {
	name  string
	value float64
}

func (t TransactionInput) monetaryFields() []namedValue {
	return []namedValue{
		{"amount", t.Amount},
		{"oldBalanceOrg", t.OldBalanceOrg},
		{"newBalanceOrig", t.NewBalanceOrig},
		{"oldBalanceDest", t.OldBalanceDest},
		{"newBalanceDest", t.NewBalanceDest},
	}
}
