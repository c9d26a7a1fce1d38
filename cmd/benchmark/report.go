package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// Confusion is the confusion matrix of FRAUD verdicts against PaySim labels.
type Confusion struct {
	TruePositives  int64 // fraud scored FRAUD
	FalsePositives int64 // legitimate scored FRAUD
	TrueNegatives  int64 // legitimate scored SAFE
	FalseNegatives int64 // fraud scored SAFE
}

// Add records one prediction.
func (c *Confusion) Add(predictedFraud, actualFraud bool) {
	switch {
	case predictedFraud && actualFraud:
		c.TruePositives++
	case predictedFraud:
		c.FalsePositives++
	case actualFraud:
		c.FalseNegatives++
	default:
		c.TrueNegatives++
	}
}

// Total returns the number of recorded predictions.
func (c Confusion) Total() int64 {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Precision is the share of FRAUD verdicts that were fraud.
func (c Confusion) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall is the share of fraud that was caught.
func (c Confusion) Recall() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// F1 is the harmonic mean of precision and recall.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy is the share of correct verdicts.
func (c Confusion) Accuracy() float64 {
	return ratio(c.TruePositives+c.TrueNegatives, c.Total())
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Results aggregates one benchmark run.
type Results struct {
	Matrix      Confusion
	Errors      int64
	Unavailable int64 // 503 responses: no classifier, no verdict

	// Rejected counts 400 responses, typically rows whose balances exceed
	// the server's monetary bound. They are not in Matrix.
	Rejected      int64
	RejectedFraud int64
	LatencySum  time.Duration
	Requests    int64
	Duration    time.Duration
}

func printResults(w io.Writer, res *Results, threshold float64) {
	m := res.Matrix

	fmt.Fprintln(w, "\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                      BENCHMARK RESULTS                        ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════╝")

	fmt.Fprintf(w, "\n📊 DATASET STATISTICS\n")
	fmt.Fprintf(w, "   Scored:           %s\n", humanize.Comma(m.Total()))
	fmt.Fprintf(w, "   Fraud:            %s\n", humanize.Comma(m.TruePositives+m.FalseNegatives))
	fmt.Fprintf(w, "   Non-Fraud:        %s\n", humanize.Comma(m.TrueNegatives+m.FalsePositives))
	fmt.Fprintf(w, "   Unavailable:      %s\n", humanize.Comma(res.Unavailable))
	fmt.Fprintf(w, "   Rejected:         %s (%s fraud)\n", humanize.Comma(res.Rejected), humanize.Comma(res.RejectedFraud))
	fmt.Fprintf(w, "   Errors:           %s\n", humanize.Comma(res.Errors))
	if threshold > 0 {
		fmt.Fprintf(w, "   Threshold:        %.2f\n", threshold)
	}

	fmt.Fprintf(w, "\n📈 CONFUSION MATRIX\n")
	fmt.Fprintln(w, "                        Predicted")
	fmt.Fprintln(w, "                   FRAUD        SAFE")
	fmt.Fprintln(w, "              ┌──────────┬──────────┐")
	fmt.Fprintf(w, "   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Fprintln(w, "              ├──────────┼──────────┤")
	fmt.Fprintf(w, "          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Fprintln(w, "              └──────────┴──────────┘")

	fmt.Fprintf(w, "\n🎯 DETECTION METRICS\n")
	fmt.Fprintf(w, "   Precision:  %.4f\n", m.Precision())
	fmt.Fprintf(w, "   Recall:     %.4f\n", m.Recall())
	fmt.Fprintf(w, "   F1-Score:   %.4f\n", m.F1())
	fmt.Fprintf(w, "   Accuracy:   %.4f\n", m.Accuracy())

	fmt.Fprintf(w, "\n⏱️  PERFORMANCE\n")
	fmt.Fprintf(w, "   Total Duration:   %v\n", res.Duration.Round(time.Millisecond))
	if res.Requests > 0 && res.Duration > 0 {
		avg := res.LatencySum / time.Duration(res.Requests)
		tps := float64(res.Requests) / res.Duration.Seconds()
		fmt.Fprintf(w, "   Avg Latency:      %v\n", avg.Round(time.Microsecond))
		fmt.Fprintf(w, "   Throughput:       %s tx/sec\n", humanize.CommafWithDigits(tps, 2))
	}

	fmt.Fprintf(w, "\n💡 INTERPRETATION\n")
	if res.RejectedFraud > 0 {
		fmt.Fprintf(w, "   ⚠️  %s fraud rows were rejected and are excluded from recall\n", humanize.Comma(res.RejectedFraud))
	}
	switch recall := m.Recall(); {
	case recall >= 0.9:
		fmt.Fprintln(w, "   ✅ Excellent recall - catching most fraud")
	case recall >= 0.7:
		fmt.Fprintln(w, "   ⚠️  Good recall - but missing some fraud")
	case recall >= 0.5:
		fmt.Fprintln(w, "   ⚠️  Moderate recall - significant fraud being missed")
	default:
		fmt.Fprintln(w, "   ❌ Poor recall - most fraud is being missed!")
	}
	switch precision := m.Precision(); {
	case precision >= 0.5:
		fmt.Fprintln(w, "   ✅ Good precision - alerts are meaningful")
	case precision >= 0.2:
		fmt.Fprintln(w, "   ⚠️  Low precision - many false alarms")
	default:
		fmt.Fprintln(w, "   ❌ Very low precision - mostly false alarms")
	}
	fmt.Fprintln(w)
}
