package enums

import "fmt"

// StockLogType records the direction of a stock movement.
type StockLogType string

const (
	StockLogTypeIn         StockLogType = "in"
	StockLogTypeOut        StockLogType = "out"
	StockLogTypeAdjustment StockLogType = "adjustment"
)

var validStockLogTypes = []StockLogType{
	StockLogTypeIn,
	StockLogTypeOut,
	StockLogTypeAdjustment,
}

// String implements fmt.Stringer.
func (s StockLogType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockLogType.
func (s StockLogType) IsValid() bool {
	for _, candidate := range validStockLogTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockLogType converts raw input into a StockLogType.
func ParseStockLogType(value string) (StockLogType, error) {
	for _, candidate := range validStockLogTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock log type %q", value)
}

// StockLogStatus tracks the approval state of a ledger entry.
type StockLogStatus string

const (
	StockLogStatusPending  StockLogStatus = "pending"
	StockLogStatusApproved StockLogStatus = "approved"
	StockLogStatusRejected StockLogStatus = "rejected"
)

var validStockLogStatuses = []StockLogStatus{
	StockLogStatusPending,
	StockLogStatusApproved,
	StockLogStatusRejected,
}

// String implements fmt.Stringer.
func (s StockLogStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockLogStatus.
func (s StockLogStatus) IsValid() bool {
	for _, candidate := range validStockLogStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockLogStatus converts raw input into a StockLogStatus.
func ParseStockLogStatus(value string) (StockLogStatus, error) {
	for _, candidate := range validStockLogStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock log status %q", value)
}
