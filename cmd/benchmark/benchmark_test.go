package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opensource-finance/fraudguard/internal/api"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

const sampleCSV = `step,type,amount,nameOrig,oldbalanceOrg,newbalanceOrig,nameDest,oldbalanceDest,newbalanceDest,isFraud,isFlaggedFraud
1,PAYMENT,9839.64,C1231006815,170136.0,160296.36,M1979787155,0.0,0.0,0,0
1,TRANSFER,181.0,C1305486145,181.0,0.0,C553264065,0.0,0.0,1,0
1,CASH_OUT,181.0,C840083671,181.0,0.0,C38997010,21182.0,0.0,1,0
1,PAYMENT,not-a-number,C2048537720,41554.0,29885.86,M1230701703,0.0,0.0,0,0
1,DEBIT,5337.77,C712410124,41720.0,36382.23,C195600860,41898.0,40348.79,0,0
`

func TestReadPaySim(t *testing.T) {
	t.Run("All", func(t *testing.T) {
		txs, skipped, err := ReadPaySim(strings.NewReader(sampleCSV), ReadOptions{})
		if err != nil {
			t.Fatalf("ReadPaySim failed: %v", err)
		}
		if skipped != 1 {
			t.Errorf("expected 1 skipped row, got %d", skipped)
		}
		if len(txs) != 4 {
			t.Fatalf("expected 4 transactions, got %d", len(txs))
		}

		want := domain.TransactionInput{
			Step:           1,
			Type:           domain.TxTransfer,
			Amount:         181,
			OldBalanceOrg:  181,
			NewBalanceOrig: 0,
		}
		if txs[1].Input != want {
			t.Errorf("expected %+v, got %+v", want, txs[1].Input)
		}
		if !txs[1].IsFraud || txs[0].IsFraud {
			t.Error("fraud labels not parsed")
		}
	})

	t.Run("FraudOnly", func(t *testing.T) {
		txs, _, err := ReadPaySim(strings.NewReader(sampleCSV), ReadOptions{FraudOnly: true})
		if err != nil {
			t.Fatalf("ReadPaySim failed: %v", err)
		}
		if len(txs) != 2 {
			t.Errorf("expected 2 fraud transactions, got %d", len(txs))
		}
	})

	t.Run("Limit", func(t *testing.T) {
		txs, _, err := ReadPaySim(strings.NewReader(sampleCSV), ReadOptions{Limit: 2})
		if err != nil {
			t.Fatalf("ReadPaySim failed: %v", err)
		}
		if len(txs) != 2 {
			t.Errorf("expected 2 transactions, got %d", len(txs))
		}
	})

	t.Run("MissingColumn", func(t *testing.T) {
		_, _, err := ReadPaySim(strings.NewReader("step,type,amount\n1,PAYMENT,10\n"), ReadOptions{})
		if err == nil {
			t.Error("expected error for missing columns")
		}
	})
}

func TestConfusion(t *testing.T) {
	var c Confusion
	c.Add(true, true)
	c.Add(true, true)
	c.Add(true, false)
	c.Add(false, true)
	c.Add(false, false)
	c.Add(false, false)

	if c.Total() != 6 {
		t.Errorf("expected 6 predictions, got %d", c.Total())
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"Precision", c.Precision(), 2.0 / 3.0},
		{"Recall", c.Recall(), 2.0 / 3.0},
		{"F1", c.F1(), 2.0 / 3.0},
		{"Accuracy", c.Accuracy(), 4.0 / 6.0},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	var empty Confusion
	if empty.Precision() != 0 || empty.Recall() != 0 || empty.F1() != 0 {
		t.Error("empty matrix should report zeros")
	}
}

func TestRunner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(api.TenantIDHeader) != "bench" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var in domain.TransactionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if in.OldBalanceOrg > 10_000_000 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch in.Type {
		case domain.TxDebit:
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		case domain.TxTransfer, domain.TxCashOut:
			_ = json.NewEncoder(w).Encode(api.ScoreResponse{Verdict: domain.VerdictFraud, Metadata: api.ResponseMetrics{Threshold: 0.3}})
		default:
			_ = json.NewEncoder(w).Encode(api.ScoreResponse{Verdict: domain.VerdictSafe, Metadata: api.ResponseMetrics{Threshold: 0.3}})
		}
	}))
	defer srv.Close()

	txs, _, err := ReadPaySim(strings.NewReader(sampleCSV), ReadOptions{})
	if err != nil {
		t.Fatalf("ReadPaySim failed: %v", err)
	}
	txs = append(txs, LabeledTransaction{
		NameOrig: "C1000000001",
		Input: domain.TransactionInput{
			Step: 1, Type: domain.TxTransfer, Amount: 12_500_000,
			OldBalanceOrg: 12_500_000, NewBalanceOrig: 0,
		},
		IsFraud: true,
	})

	runner := &Runner{Client: srv.Client(), BaseURL: srv.URL, TenantID: "bench", Workers: 3}
	res := runner.Run(context.Background(), txs)

	if res.Requests != 5 {
		t.Errorf("expected 5 requests, got %d", res.Requests)
	}
	if res.Rejected != 1 || res.RejectedFraud != 1 {
		t.Errorf("expected 1 rejected fraud row, got %d (%d fraud)", res.Rejected, res.RejectedFraud)
	}
	if res.Errors != 0 {
		t.Errorf("rejected rows counted as errors: %d", res.Errors)
	}
	if res.Unavailable != 1 {
		t.Errorf("expected 1 unavailable, got %d", res.Unavailable)
	}
	if res.Matrix.TruePositives != 2 || res.Matrix.TrueNegatives != 1 {
		t.Errorf("unexpected matrix %+v", res.Matrix)
	}
	if runner.threshold != 0.3 {
		t.Errorf("expected threshold 0.3, got %v", runner.threshold)
	}

	var out bytes.Buffer
	printResults(&out, res, runner.threshold)
	if !strings.Contains(out.String(), "Recall:     1.0000") {
		t.Errorf("report missing recall line:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "1 fraud rows were rejected") {
		t.Errorf("report missing rejected warning:\n%s", out.String())
	}
}
