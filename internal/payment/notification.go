package payment

// Notification is a verified webhook event reduced to the cases the service acts on.
// It is one of CheckoutCompleted, ChargeRefunded or Other.
type Notification interface {
	EventType() string
	isNotification()
}

// CheckoutCompleted reports a hosted checkout that finished, including delayed
// payment methods that settled later.
type CheckoutCompleted struct {
	EventID       string
	Type          string
	SessionID     string
	PaymentRef    string
	CustomerEmail string
	// PaymentStatus is "paid", "unpaid" or "no_payment_required".
	PaymentStatus string
	Metadata      map[string]string
}

// Settled is false while a delayed payment method is still pending.
func (c CheckoutCompleted) Settled() bool {
	return c.PaymentStatus != "unpaid"
}

type ChargeRefunded struct {
	EventID    string
	ChargeID   string
	PaymentRef string
	// FullyRefunded is false for partial refunds, which are not supported.
	FullyRefunded bool
}

// Ref is the reference the purchase was stored under, falling back to the charge.
func (c ChargeRefunded) Ref() string {
	if c.PaymentRef != "" {
		return c.PaymentRef
	}
	return c.ChargeID
}

// Other is any event the service does not act on.
type Other struct {
	EventID string
	Type    string
}

func (c CheckoutCompleted) EventType() string { return c.Type }
func (ChargeRefunded) EventType() string      { return "charge.refunded" }
func (o Other) EventType() string             { return o.Type }

func (CheckoutCompleted) isNotification() {}
func (ChargeRefunded) isNotification()    {}
func (Other) isNotification()             {}
