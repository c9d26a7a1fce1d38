package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// LabeledTransaction is a PaySim row: the scoring input plus the ground
// truth label.
type LabeledTransaction struct {
	NameOrig string
	Input    domain.TransactionInput
	IsFraud  bool
}

// ReadOptions filters the rows returned by ReadPaySim.
type ReadOptions struct {
	// Limit caps the number of rows (0 = all)
	Limit int

	// FraudOnly keeps only labelled fraud
	FraudOnly bool

	// SampleRate keeps this fraction of non-fraud rows (1.0 = all)
	SampleRate float64
}

var paySimColumns = []string{
	"step", "type", "amount", "nameorig", "oldbalanceorg", "newbalanceorig",
	"oldbalancedest", "newbalancedest", "isfraud", "isflaggedfraud",
}

// ReadPaySimFile opens path and reads it with ReadPaySim.
func ReadPaySimFile(path string, opts ReadOptions) ([]LabeledTransaction, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()
	return ReadPaySim(file, opts)
}

// ReadPaySim parses a PaySim CSV. It returns the kept rows and the number of
// malformed rows skipped.
func ReadPaySim(r io.Reader, opts ReadOptions) ([]LabeledTransaction, int, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range paySimColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", col)
		}
	}

	sampleRate := opts.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1
	}

	var (
		transactions  []LabeledTransaction
		skipped       int
		sampleCounter int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		tx, err := parseRow(record, colIndex)
		if err != nil {
			skipped++
			continue
		}

		if opts.FraudOnly && !tx.IsFraud {
			continue
		}
		if !tx.IsFraud && sampleRate < 1 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		transactions = append(transactions, tx)
		if opts.Limit > 0 && len(transactions) >= opts.Limit {
			break
		}
	}

	return transactions, skipped, nil
}

func parseRow(record []string, col map[string]int) (LabeledTransaction, error) {
	field := func(name string) string { return strings.TrimSpace(record[col[name]]) }

	var errs []error
	num := func(name string) float64 {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return v
	}

	step, err := strconv.Atoi(field("step"))
	if err != nil {
		errs = append(errs, fmt.Errorf("step: %w", err))
	}

	tx := LabeledTransaction{
		NameOrig: field("nameorig"),
		Input: domain.TransactionInput{
			Step:           step,
			Type:           domain.TxType(field("type")),
			Amount:         num("amount"),
			OldBalanceOrg:  num("oldbalanceorg"),
			NewBalanceOrig: num("newbalanceorig"),
			OldBalanceDest: num("oldbalancedest"),
			NewBalanceDest: num("newbalancedest"),
			// Always false at scoring time; the label column is not an input.
			IsFlaggedFraud: false,
		},
		IsFraud: field("isfraud") == "1",
	}
	if len(errs) > 0 {
		return LabeledTransaction{}, errors.Join(errs...)
	}
	return tx, nil
}
