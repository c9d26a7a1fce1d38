// Package render turns a scoring outcome into the display block shown to
// operators.
package render

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Separator joins rationale reasons on a single line.
const Separator = " • "

// Display styles.
const (
	StyleAlert   = "alert"
	StyleSuccess = "success"
)

// Display is the human-facing rendition of an outcome.
type Display struct {
	Probability string `json:"probability"`
	Title       string `json:"title"`
	Action      string `json:"action"`
	Style       string `json:"style"`
	Reasons     string `json:"reasons"`
}

// Render builds the display block for outcome.
func Render(outcome domain.ScoringOutcome) Display {
	d := Display{
		Probability: Percent(outcome.Probability),
		Reasons:     strings.Join(outcome.Rationale, Separator),
	}

	if outcome.IsFraud() {
		d.Title = "🚨 High Risk Transaction Detected"
		d.Action = "Block & Review"
		d.Style = StyleAlert
	} else {
		d.Title = "✅ Transaction Appears Safe"
		d.Action = "Process"
		d.Style = StyleSuccess
	}
	return d
}

// Percent formats a probability with one decimal, e.g. 0.8734 -> "87.3%".
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}
