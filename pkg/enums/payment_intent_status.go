package enums

import "fmt"

// PaymentIntentStatus tracks the local settlement lifecycle of a gateway
// payment intent. Transitions are monotonic: created -> completed.
type PaymentIntentStatus string

const (
	PaymentIntentStatusCreated   PaymentIntentStatus = "created"
	PaymentIntentStatusCompleted PaymentIntentStatus = "completed"
)

var validPaymentIntentStatuses = []PaymentIntentStatus{
	PaymentIntentStatusCreated,
	PaymentIntentStatusCompleted,
}

// String implements fmt.Stringer.
func (p PaymentIntentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentIntentStatus.
func (p PaymentIntentStatus) IsValid() bool {
	for _, candidate := range validPaymentIntentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentIntentStatus converts raw input into a PaymentIntentStatus.
func ParsePaymentIntentStatus(value string) (PaymentIntentStatus, error) {
	for _, candidate := range validPaymentIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment intent status %q", value)
}
