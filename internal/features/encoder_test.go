package features

import (
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

func validInput(t domain.TxType) domain.TransactionInput {
	return domain.TransactionInput{
		Step:           7,
		Type:           t,
		Amount:         1500.25,
		OldBalanceOrg:  2000,
		NewBalanceOrig: 499.75,
		OldBalanceDest: 10,
		NewBalanceDest: 1510.25,
	}
}

func TestEncodeFieldOrder(t *testing.T) {
	enc, err := NewEncoder(nil)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	v, err := enc.Encode(validInput(domain.TxPayment))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := domain.FeatureVector{7, 3, 1500.25, 2000, 499.75, 10, 1510.25, 0}
	if v != want {
		t.Errorf("expected %v, got %v", want, v)
	}
}

func TestEncodeFixedTypeTable(t *testing.T) {
	enc, _ := NewEncoder(nil)

	tests := []struct {
		txType domain.TxType
		code   float64
	}{
		{domain.TxCashIn, 0},
		{domain.TxCashOut, 1},
		{domain.TxDebit, 2},
		{domain.TxPayment, 3},
		{domain.TxTransfer, 4},
	}

	for _, tt := range tests {
		t.Run(string(tt.txType), func(t *testing.T) {
			v, err := enc.Encode(validInput(tt.txType))
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if v[domain.FeatureType] != tt.code {
				t.Errorf("expected code %.0f, got %.0f", tt.code, v[domain.FeatureType])
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc, _ := NewEncoder(nil)

	for _, txType := range domain.TxTypes {
		v, err := enc.Encode(validInput(txType))
		if err != nil {
			t.Fatalf("Encode(%s) failed: %v", txType, err)
		}

		decoded, err := enc.Decode(int(v[domain.FeatureType]))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if decoded != txType {
			t.Errorf("expected %s after round trip, got %s", txType, decoded)
		}
	}
}

func TestEncodeFlaggedFraud(t *testing.T) {
	enc, _ := NewEncoder(nil)

	in := validInput(domain.TxTransfer)
	in.IsFlaggedFraud = true

	v, err := enc.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if v[domain.FeatureIsFlaggedFraud] != 1 {
		t.Errorf("expected flagged code 1, got %.0f", v[domain.FeatureIsFlaggedFraud])
	}
}

func TestEncodeRejectsInvalidInput(t *testing.T) {
	enc, _ := NewEncoder(nil)

	tests := []struct {
		name   string
		mutate func(*domain.TransactionInput)
	}{
		{"UnknownType", func(in *domain.TransactionInput) { in.Type = "WIRE" }},
		{"EmptyType", func(in *domain.TransactionInput) { in.Type = "" }},
		{"LowercaseType", func(in *domain.TransactionInput) { in.Type = "transfer" }},
		{"ZeroStep", func(in *domain.TransactionInput) { in.Step = 0 }},
		{"NegativeAmount", func(in *domain.TransactionInput) { in.Amount = -1 }},
		{"NaNBalance", func(in *domain.TransactionInput) { in.OldBalanceOrg = math.NaN() }},
		{"InfiniteBalance", func(in *domain.TransactionInput) { in.NewBalanceDest = math.Inf(1) }},
		{"NegativeDestBalance", func(in *domain.TransactionInput) { in.OldBalanceDest = -0.01 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(domain.TxTransfer)
			tt.mutate(&in)

			_, err := enc.Encode(in)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestNewEncoderCustomTable(t *testing.T) {
	table := domain.TypeEncoding{
		domain.TxTransfer: 0,
		domain.TxPayment:  1,
		domain.TxDebit:    2,
		domain.TxCashOut:  3,
		domain.TxCashIn:   4,
	}

	enc, err := NewEncoder(table)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	v, _ := enc.Encode(validInput(domain.TxTransfer))
	if v[domain.FeatureType] != 0 {
		t.Errorf("expected TRANSFER code 0 with custom table, got %.0f", v[domain.FeatureType])
	}
}

func TestNewEncoderRejectsNonBijectiveTable(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		table := domain.DefaultTypeEncoding()
		delete(table, domain.TxDebit)
		if _, err := NewEncoder(table); err == nil {
			t.Error("expected error for missing type")
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		table := domain.DefaultTypeEncoding()
		table[domain.TxDebit] = 0
		if _, err := NewEncoder(table); err == nil {
			t.Error("expected error for duplicate code")
		}
	})

	t.Run("Extra", func(t *testing.T) {
		table := domain.DefaultTypeEncoding()
		table["WIRE"] = 5
		if _, err := NewEncoder(table); err == nil {
			t.Error("expected error for unknown type in table")
		}
	})
}

func TestDecodeUnknownCode(t *testing.T) {
	enc, _ := NewEncoder(nil)
	if _, err := enc.Decode(9); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
