package checkout

import (
	"errors"
	"fmt"
)

const (
	MsgInvalidEmail  = "Please enter a valid email address."
	MsgInvalidCard   = "Please enter a valid card number."
	MsgInvalidMethod = "Please choose a payment method."
	MsgEmptyCart     = "Your cart is empty."
	MsgSubmitFailed  = "Payment processing failed. Please try again."
)

var (
	ErrEmptyCart  = errors.New("cart is empty, nothing to checkout")
	ErrInProgress = errors.New("checkout already in progress for this cart")
	ErrAbandoned  = errors.New("checkout abandoned while processing")
)

// ValidationError is a form problem caught before any network call.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SubmitError means the order could not be created. Buyers only ever see
// MsgSubmitFailed; the cause is kept for logs.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return "create order: " + e.Err.Error() }

func (e *SubmitError) Unwrap() error { return e.Err }

func (e *SubmitError) Message() string { return MsgSubmitFailed }

// PaymentError is a declined charge. It is a business outcome, not a fault.
type PaymentError struct {
	OrderID string
	Reason  string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment for order %s failed: %s", e.OrderID, e.Reason)
}
