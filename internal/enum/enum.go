package enum

// ── Group A: Wizard state (closed sets, validated by the session machine) ──

const (
	StepHome         = "home"
	StepDelivery     = "delivery"
	StepBackground   = "background"
	StepQuickPhoto   = "quickPhoto"
	StepUserInfo     = "userInfo"
	StepConfirmation = "confirmation"
	StepReceipt      = "receipt"
)

const (
	DeliveryEmail  = "email"
	DeliveryPrints = "prints"
)

// ── Group B: Fulfilment flags on history records ──

const (
	FlagPickupComplete  = "pickupComplete"
	FlagEmailSent       = "emailSent"
	FlagPicturesPrinted = "picturesPrinted"
	FlagPictureTaken    = "pictureTaken"
)

// ── Group C: Configurable labels (admin may enable a subset) ──

const (
	PaymentCash   = "cash"
	PaymentDebit  = "debit"
	PaymentCredit = "credit"
	PaymentCheck  = "check"
)

// PeopleTenPlus is the sentinel for groups larger than nine.
const PeopleTenPlus = "10+"

// AllPaymentMethods lists every payment identifier in display order.
func AllPaymentMethods() []string {
	return []string{PaymentCash, PaymentDebit, PaymentCredit, PaymentCheck}
}

// AllDeliveryMethods lists every delivery identifier in display order.
func AllDeliveryMethods() []string {
	return []string{DeliveryEmail, DeliveryPrints}
}

// IsFlag reports whether name is one of the four fulfilment flags.
func IsFlag(name string) bool {
	switch name {
	case FlagPickupComplete, FlagEmailSent, FlagPicturesPrinted, FlagPictureTaken:
		return true
	}
	return false
}
