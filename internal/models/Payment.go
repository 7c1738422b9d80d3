package models

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentActive    PaymentState = "active"
	PaymentExpired   PaymentState = "expired"
	PaymentFailed    PaymentState = "failed"
	PaymentTimeout   PaymentState = "verification_timeout"
	PaymentCancelled PaymentState = "cancelled"
)

// Terminal reports whether polling can stop at this state.
func (s PaymentState) Terminal() bool {
	return s != PaymentPending
}

type PaymentVerification struct {
	OrderID  string       `json:"orderId"`
	State    PaymentState `json:"state"`
	Plan     string       `json:"plan,omitempty"`
	Message  string       `json:"message,omitempty"`
	Attempts int          `json:"attempts"`
}
