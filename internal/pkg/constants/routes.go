package constants

// Static route constants
const (
	APIRoute = "/api"

	// FeedbackRoute is the public short path encoded into invoice QR codes.
	FeedbackRoute = "/f"

	// WebhookRazorpayRoute receives provider webhook deliveries. It is
	// registered outside the rate limiter so redeliveries are never dropped.
	WebhookRazorpayRoute = "/api/v1/webhooks/razorpay"
)
