package enums

// ReconciliationReason explains why a paid intent has no order yet.
type ReconciliationReason string

const (
	// ReconciliationOrderCreationFailed means the order write failed after payment.
	ReconciliationOrderCreationFailed ReconciliationReason = "order_creation_failed"
	// ReconciliationAwaitingConfirm means the webhook saw a success it could not
	// reconstruct and the client has not confirmed yet.
	ReconciliationAwaitingConfirm ReconciliationReason = "awaiting_confirmation"
)

// ReconciliationStatus is the lifecycle of a reconciliation record.
type ReconciliationStatus string

const (
	ReconciliationStatusOpen      ReconciliationStatus = "open"
	ReconciliationStatusResolved  ReconciliationStatus = "resolved"
	ReconciliationStatusEscalated ReconciliationStatus = "escalated"
)
