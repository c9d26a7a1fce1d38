package explain

import (
	"fmt"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Rule IDs of the built-in table.
const (
	RuleLargeOutflow      = "large-outflow"
	RuleAccountEmptied    = "account-emptied"
	RuleZeroBalanceDest   = "zero-balance-receiver"
	RuleExceedsBalance    = "exceeds-balance"
	RuleTransferNotCredit = "transfer-not-credited"
)

// BuiltinRules returns the explanation rules in evaluation order.
// Order is part of the output contract: reordering changes the rationale of
// transactions matching several rules.
func BuiltinRules() []Rule {
	return []Rule{
		{
			ID:          RuleLargeOutflow,
			Description: "Transfer or cash-out above 100,000",
			Expression:  `tx_type in ['TRANSFER', 'CASH_OUT'] && amount > 100000.0`,
			Message: func(in domain.TransactionInput) string {
				return fmt.Sprintf("Large %s of %s", in.Type, FormatAmount(in.Amount))
			},
		},
		{
			ID:          RuleAccountEmptied,
			Description: "Sender balance drained to zero",
			Expression:  `old_balance_org > 0.0 && new_balance_orig == 0.0`,
			Message:     constant("Account fully emptied"),
		},
		{
			ID:          RuleZeroBalanceDest,
			Description: "Outflow to a receiver with zero prior balance",
			Expression:  `tx_type in ['TRANSFER', 'CASH_OUT'] && old_balance_dest == 0.0`,
			Message:     constant("Receiver had zero balance"),
		},
		{
			ID:          RuleExceedsBalance,
			Description: "Amount larger than the sender's balance",
			Expression:  `amount > old_balance_org`,
			Message:     constant("Amount exceeds available balance"),
		},
		{
			ID:          RuleTransferNotCredit,
			Description: "Transfer left the receiver balance at zero",
			Expression:  `tx_type == 'TRANSFER' && new_balance_dest == 0.0 && amount > 0.0`,
			Message:     constant("Transfer didn't increase receiver balance"),
		},
	}
}

func constant(msg string) func(domain.TransactionInput) string {
	return func(domain.TransactionInput) string { return msg }
}
