// Package features encodes raw transactions into the classifier's schema.
package features

import (
	"fmt"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Encoder maps a TransactionInput to a FeatureVector using a fixed type table.
// It is immutable after construction and safe for concurrent use.
type Encoder struct {
	codes map[domain.TxType]int
	types map[int]domain.TxType
}

// NewEncoder creates an encoder for the given type table. A nil table selects
// domain.DefaultTypeEncoding. The table must be a bijection over all five
// transaction types.
func NewEncoder(table domain.TypeEncoding) (*Encoder, error) {
	if table == nil {
		table = domain.DefaultTypeEncoding()
	}

	e := &Encoder{
		codes: make(map[domain.TxType]int, len(domain.TxTypes)),
		types: make(map[int]domain.TxType, len(domain.TxTypes)),
	}

	for _, t := range domain.TxTypes {
		code, ok := table[t]
		if !ok {
			return nil, fmt.Errorf("type encoding is missing %s", t)
		}
		if prev, dup := e.types[code]; dup {
			return nil, fmt.Errorf("type encoding maps %s and %s to the same code %d", prev, t, code)
		}
		e.codes[t] = code
		e.types[code] = t
	}

	if len(table) != len(domain.TxTypes) {
		return nil, fmt.Errorf("type encoding has %d entries, want %d", len(table), len(domain.TxTypes))
	}

	return e, nil
}

// Encode validates the input and produces the feature vector.
func (e *Encoder) Encode(in domain.TransactionInput) (domain.FeatureVector, error) {
	var v domain.FeatureVector

	if err := in.Validate(); err != nil {
		return v, err
	}

	code, ok := e.codes[in.Type]
	if !ok {
		return v, fmt.Errorf("%w: no code for transaction type %q", domain.ErrInvalidInput, in.Type)
	}

	v[domain.FeatureStep] = float64(in.Step)
	v[domain.FeatureType] = float64(code)
	v[domain.FeatureAmount] = in.Amount
	v[domain.FeatureOldBalanceOrg] = in.OldBalanceOrg
	v[domain.FeatureNewBalanceOrig] = in.NewBalanceOrig
	v[domain.FeatureOldBalanceDest] = in.OldBalanceDest
	v[domain.FeatureNewBalanceDest] = in.NewBalanceDest
	if in.IsFlaggedFraud {
		v[domain.FeatureIsFlaggedFraud] = 1
	}

	return v, nil
}

// Decode returns the transaction type for a type code.
func (e *Encoder) Decode(code int) (domain.TxType, error) {
	t, ok := e.types[code]
	if !ok {
		return "", fmt.Errorf("%w: unknown type code %d", domain.ErrInvalidInput, code)
	}
	return t, nil
}

// Code returns the code for a transaction type.
func (e *Encoder) Code(t domain.TxType) (int, bool) {
	code, ok := e.codes[t]
	return code, ok
}
