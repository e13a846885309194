package checkout

import (
	"strings"
	"unicode"
)

type PaymentMethod string

const (
	MethodYooKassa PaymentMethod = "yookassa" // bank card
	MethodSBP      PaymentMethod = "sbp"      // fast payment system, QR
	MethodMir      PaymentMethod = "mir"      // MIR Pay, card
)

const minCardDigits = 16

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodYooKassa, MethodSBP, MethodMir:
		return true
	}
	return false
}

func (m PaymentMethod) RequiresCard() bool {
	return m == MethodYooKassa || m == MethodMir
}

// Form is what the buyer submits. Token is the optional bearer credential
// forwarded to order creation.
type Form struct {
	Email         string        `json:"email"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	CardNumber    string        `json:"cardNumber,omitempty"`
	CardExpiry    string        `json:"cardExpiry,omitempty"`
	CardCVV       string        `json:"cardCvv,omitempty"`
	CardName      string        `json:"cardName,omitempty"`
	Token         string        `json:"-"`
}

// Validate checks the form in the order the buyer sees the fields.
func (f Form) Validate() error {
	email := strings.TrimSpace(f.Email)
	if email == "" || !strings.Contains(email, "@") {
		return &ValidationError{Field: "email", Message: MsgInvalidEmail}
	}
	if !f.PaymentMethod.Valid() {
		return &ValidationError{Field: "paymentMethod", Message: MsgInvalidMethod}
	}
	if f.PaymentMethod.RequiresCard() && cardDigits(f.CardNumber) < minCardDigits {
		return &ValidationError{Field: "cardNumber", Message: MsgInvalidCard}
	}
	return nil
}

func cardDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
