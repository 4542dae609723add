package enums

import "fmt"

// CashFlowKind maps to the cash_flow_kind_enum enum in Postgres.
type CashFlowKind string

const (
	CashFlowKindRevenue CashFlowKind = "REVENUE"
	CashFlowKindExpense CashFlowKind = "EXPENSE"
)

var validCashFlowKinds = []CashFlowKind{
	CashFlowKindRevenue,
	CashFlowKindExpense,
}

// IsValid reports whether the value matches the canonical cash flow kind enum.
func (k CashFlowKind) IsValid() bool {
	for _, candidate := range validCashFlowKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCashFlowKind converts raw input into CashFlowKind.
func ParseCashFlowKind(value string) (CashFlowKind, error) {
	for _, candidate := range validCashFlowKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cash flow kind %q", value)
}
