package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"

	// Plan actions
	ActionPlanSwitched  = "plan.switched"
	ActionMonthlyReroll = "plan.monthly_reroll"

	// Charge actions
	ActionPreAuthorized       = "charge.preauthorized"
	ActionPaymentRequired     = "charge.payment_required"
	ActionDebitConfirmed      = "charge.confirmed"
	ActionInsufficientBalance = "charge.insufficient_balance"

	// Grant actions
	ActionManualGranted = "grant.manual"

	// Reconciliation actions
	ActionReconciled = "balance.reconciled"
)

// Resource constants for audit events.
const (
	ResourceAccount = "account"
	ResourcePlan    = "plan"
	ResourceCharge  = "charge"
	ResourceGrant   = "grant"
	ResourceBalance = "balance"
)

// Category constants for audit events.
const (
	CategoryBilling = "billing"
	CategoryPayment = "payment"
	CategoryAccess  = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
