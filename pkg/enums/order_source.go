package enums

// OrderSource records which path materialized an order.
type OrderSource string

const (
	// OrderSourceConfirm is the client confirm call with the full payload.
	OrderSourceConfirm OrderSource = "confirm"
	// OrderSourceWebhook is reconstructed from payment metadata by the webhook.
	OrderSourceWebhook OrderSource = "webhook_fallback"
	// OrderSourceReconciliation is created by the reconciliation worker.
	OrderSourceReconciliation OrderSource = "reconciliation"
)

func (s OrderSource) IsValid() bool {
	switch s {
	case OrderSourceConfirm, OrderSourceWebhook, OrderSourceReconciliation:
		return true
	}
	return false
}

// IsReconstructed reports whether the order was built from metadata rather
// than the client payload.
func (s OrderSource) IsReconstructed() bool {
	return s == OrderSourceWebhook || s == OrderSourceReconciliation
}
