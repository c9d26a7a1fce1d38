// Package explain produces the ordered, human-readable rationale for a
// scored transaction.
package explain

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Fallback messages used when no rule matches.
const (
	FallbackFraud = "Pattern matches known fraud indicators"
	FallbackSafe  = "Transaction follows normal patterns"
)

// Rule is one explanation rule: a CEL boolean expression and the message it
// contributes when it matches.
type Rule struct {
	ID          string
	Description string
	Expression  string
	Message     func(in domain.TransactionInput) string
}

// RuleInfo is the serializable view of a rule.
type RuleInfo struct {
	Position    int    `json:"position"`
	ID          string `json:"id"`
	Description string `json:"description"`
	Expression  string `json:"expression"`
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// Engine evaluates its rules in order, without short-circuiting.
// Rules are compiled once; the engine is read-only afterwards and safe for
// concurrent use.
type Engine struct {
	rules []compiledRule
}

// NewEngine compiles the built-in rule table.
func NewEngine() (*Engine, error) {
	return NewEngineWithRules(BuiltinRules())
}

// NewEngineWithRules compiles rules in the given order.
func NewEngineWithRules(rules []Rule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("step", cel.IntType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("old_balance_org", cel.DoubleType),
		cel.Variable("new_balance_orig", cel.DoubleType),
		cel.Variable("old_balance_dest", cel.DoubleType),
		cel.Variable("new_balance_dest", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if r.Message == nil {
			return nil, fmt.Errorf("rule %s: message is required", r.ID)
		}

		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", r.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %s: expression must return bool, got %s", r.ID, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to create program for rule %s: %w", r.ID, err)
		}

		e.rules = append(e.rules, compiledRule{rule: r, program: program})
	}

	return e, nil
}

// Explain returns the messages of every matching rule, in rule order.
// When nothing matches it returns exactly one fallback message chosen by
// verdict. The result is never empty.
func (e *Engine) Explain(in domain.TransactionInput, verdict domain.Verdict) ([]string, error) {
	activation := map[string]any{
		"tx_type":          string(in.Type),
		"step":             int64(in.Step),
		"amount":           in.Amount,
		"old_balance_org":  in.OldBalanceOrg,
		"new_balance_orig": in.NewBalanceOrig,
		"old_balance_dest": in.OldBalanceDest,
		"new_balance_dest": in.NewBalanceDest,
	}

	var reasons []string
	for _, r := range e.rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("rule %s: evaluation error: %w", r.rule.ID, err)
		}

		if matched, ok := out.(types.Bool); ok && bool(matched) {
			reasons = append(reasons, r.rule.Message(in))
		}
	}

	if len(reasons) == 0 {
		reasons = []string{fallback(verdict)}
	}
	return reasons, nil
}

// Rules returns the rule table in evaluation order.
func (e *Engine) Rules() []RuleInfo {
	infos := make([]RuleInfo, len(e.rules))
	for i, r := range e.rules {
		infos[i] = RuleInfo{
			Position:    i + 1,
			ID:          r.rule.ID,
			Description: r.rule.Description,
			Expression:  r.rule.Expression,
		}
	}
	return infos
}

// RulesCount returns the number of compiled rules.
func (e *Engine) RulesCount() int {
	return len(e.rules)
}

func fallback(verdict domain.Verdict) string {
	if verdict == domain.VerdictFraud {
		return FallbackFraud
	}
	return FallbackSafe
}

// FormatAmount renders a currency amount with thousands separators and no
// decimals, e.g. 1810000 -> "$1,810,000".
func FormatAmount(amount float64) string {
	return "$" + humanize.CommafWithDigits(math.RoundToEven(amount), 0)
}
