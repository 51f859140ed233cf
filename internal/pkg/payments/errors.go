package payments

import "errors"

// Reconciliation error taxonomy. The webhook controller maps these onto
// HTTP statuses; everything resolved locally (orphan rows, duplicates)
// never surfaces to the provider as a retryable failure.
var (
	// ErrMissingSecret means the webhook secret is not configured. This is
	// a deployment fault and maps to HTTP 500 without detail in the body.
	ErrMissingSecret = errors.New("webhook secret is not configured")

	// ErrInvalidSignature means the signature header was absent or did not
	// match the request body. The event is dropped with HTTP 400.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrOrphanPayment means a captured event referenced an order that was
	// never initiated locally. Retrying cannot create the missing row, so
	// the reconciler logs and reports success to stop redelivery.
	ErrOrphanPayment = errors.New("no payment record for provider order")

	// errWriteConflict marks transient transaction conflicts in tests; the
	// production path detects them from MySQL error numbers instead.
	errWriteConflict = errors.New("transient write conflict")
)
