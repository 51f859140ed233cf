package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/invisifeed/invisifeed/internal/pkg/env"
)

// ProviderOrder is the subset of a provider order the checkout flow needs.
type ProviderOrder struct {
	OrderID  string
	Amount   int64
	Currency string
}

// OrderCreator creates checkout orders on the payment provider. The
// reconciler itself never calls the provider; this exists so controllers
// can be tested against a fake.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*ProviderOrder, error)
}

// ProviderClient wraps the Razorpay SDK. It is constructed explicitly and
// passed to whoever needs it instead of living as a package singleton.
type ProviderClient struct {
	client *razorpay.Client
}

// NewProviderClient creates a client from explicit credentials.
func NewProviderClient(keyID, keySecret string) (*ProviderClient, error) {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		return nil, errors.New("RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET are not configured")
	}
	return &ProviderClient{client: razorpay.NewClient(keyID, keySecret)}, nil
}

// NewProviderClientFromEnv creates a client from environment configuration.
func NewProviderClientFromEnv() (*ProviderClient, error) {
	return NewProviderClient(
		strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", "")),
		strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", "")),
	)
}

// CreateOrder opens a provider order for the given amount in minor units.
func (c *ProviderClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*ProviderOrder, error) {
	_ = ctx // the SDK does not take a context
	if amountMinor <= 0 {
		return nil, fmt.Errorf("invalid order amount: %d", amountMinor)
	}
	if currency == "" {
		currency = "INR"
	}

	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	body, err := c.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create failed: %w", err)
	}

	orderID, _ := body["id"].(string)
	if orderID == "" {
		return nil, errors.New("razorpay order create returned no order id")
	}
	return &ProviderOrder{OrderID: orderID, Amount: amountMinor, Currency: currency}, nil
}
