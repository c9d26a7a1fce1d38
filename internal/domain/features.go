package domain

// FeatureCount is the width of the classifier's training schema.
const FeatureCount = 8

// FeatureVector is the fixed-order numeric input of the classifier:
// [step, typeCode, amount, oldBalanceOrg, newBalanceOrig, oldBalanceDest,
// newBalanceDest, isFlaggedFraudCode].
//
// It is an array, not a slice, so every copy is independent.
type FeatureVector [FeatureCount]float64

// Feature positions inside a FeatureVector.
const (
	FeatureStep = iota
	FeatureType
	FeatureAmount
	FeatureOldBalanceOrg
	FeatureNewBalanceOrig
	FeatureOldBalanceDest
	FeatureNewBalanceDest
	FeatureIsFlaggedFraud
)

// FeatureNames are the column names the classifier was trained with, in
// vector order. Model artifacts declaring features must match exactly.
var FeatureNames = [FeatureCount]string{
	"step",
	"type",
	"amount",
	"oldbalanceOrg",
	"newbalanceOrig",
	"oldbalanceDest",
	"newbalanceDest",
	"isFlaggedFraud",
}

// TypeEncoding maps a transaction type to the integer code seen in training.
type TypeEncoding map[TxType]int

// DefaultTypeEncoding is the lexicographic table the shipped classifier was
// trained with. It is independent of any UI ordering.
func DefaultTypeEncoding() TypeEncoding {
	return TypeEncoding{
		TxCashIn:   0,
		TxCashOut:  1,
		TxDebit:    2,
		TxPayment:  3,
		TxTransfer: 4,
	}
}
