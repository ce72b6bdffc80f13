package enums

import "fmt"

// PaymentType distinguishes what a payment unlocks on a post.
type PaymentType string

const (
	PaymentTypeContent PaymentType = "content"
	PaymentTypeComment PaymentType = "comment"
)

// String implements fmt.Stringer.
func (p PaymentType) String() string {
	return string(p)
}

// IsValid reports whether the payment type is recognized.
func (p PaymentType) IsValid() bool {
	return p == PaymentTypeContent || p == PaymentTypeComment
}

// ParsePaymentType converts a raw string into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	switch PaymentType(value) {
	case PaymentTypeContent:
		return PaymentTypeContent, nil
	case PaymentTypeComment:
		return PaymentTypeComment, nil
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}
