package domain

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentMethod is a label only; no settlement happens in this service.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentPayPal     PaymentMethod = "paypal"
	PaymentApplePay   PaymentMethod = "apple_pay"
	PaymentGooglePay  PaymentMethod = "google_pay"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "net_banking"
	PaymentCOD        PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentPayPal, PaymentApplePay, PaymentGooglePay,
		PaymentUPI, PaymentNetBanking, PaymentCOD:
		return true
	}
	return false
}
