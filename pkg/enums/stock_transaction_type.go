package enums

import "fmt"

// StockTransactionType maps to the stock_transaction_type_enum enum in Postgres.
type StockTransactionType string

const (
	// StockTransactionTypeReceive adds printed books to the main inventory.
	StockTransactionTypeReceive StockTransactionType = "in"
	// StockTransactionTypeGivePledge moves books from the main inventory into
	// the pandham give pool.
	StockTransactionTypeGivePledge StockTransactionType = "pandham"
	// StockTransactionTypeSupportPrint removes books a sponsor keeps for
	// themselves from the main inventory.
	StockTransactionTypeSupportPrint StockTransactionType = "support"
	// StockTransactionTypeRequestFulfilled hands a give-pool book to a requester.
	StockTransactionTypeRequestFulfilled StockTransactionType = "request"
	// StockTransactionTypeDonate is a giveaway by the foundation itself.
	StockTransactionTypeDonate StockTransactionType = "donate"
	// StockTransactionTypeAdjustment is a signed manual correction.
	StockTransactionTypeAdjustment StockTransactionType = "adjustment"
)

var validStockTransactionTypes = []StockTransactionType{
	StockTransactionTypeReceive,
	StockTransactionTypeGivePledge,
	StockTransactionTypeSupportPrint,
	StockTransactionTypeRequestFulfilled,
	StockTransactionTypeDonate,
	StockTransactionTypeAdjustment,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t StockTransactionType) IsValid() bool {
	for _, candidate := range validStockTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockTransactionType converts raw input into StockTransactionType.
func ParseStockTransactionType(value string) (StockTransactionType, error) {
	for _, candidate := range validStockTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock transaction type %q", value)
}
