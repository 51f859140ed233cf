package controllers

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/env"
	"github.com/invisifeed/invisifeed/internal/pkg/orgcontext"
)

// defaultProPlanPricePaise is the monthly pro price in minor units.
const defaultProPlanPricePaise = 9900

// HandleCreateCheckout opens a provider order for a pro upgrade and records
// a pending payment row keyed by the provider order id. The webhook
// reconciler flips that row on capture.
func HandleCreateCheckout(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	amountPaise := int64(defaultProPlanPricePaise)
	if raw := env.GetEnv("PRO_PLAN_PRICE", ""); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			log.Printf("invalid PRO_PLAN_PRICE %q, using default", raw)
		} else {
			amountPaise = parsed
		}
	}

	creator, err := newOrderCreator()
	if err != nil {
		log.Printf("payment provider not configured: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Payment provider is not configured"})
	}

	receipt := fmt.Sprintf("org-%d-%d", orgCtx.OrganizationID, time.Now().Unix())
	order, err := creator.CreateOrder(c.UserContext(), amountPaise, "INR", receipt)
	if err != nil {
		log.Printf("failed to create provider order: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Failed to create payment order"})
	}

	payment := &models.Payment{
		OrganizationID:  orgCtx.OrganizationID,
		ProviderOrderID: order.OrderID,
		Status:          models.PaymentStatusPending,
		Amount:          float64(order.Amount) / 100,
		Currency:        order.Currency,
	}
	if err := repository.GetGlobalFactory().GetPaymentRepository().Create(payment); err != nil {
		log.Printf("failed to record pending payment for order %s: %v", order.OrderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to record payment"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id": order.OrderID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"key_id":   env.GetEnv("RAZORPAY_KEY_ID", ""),
	})
}

// HandleListPayments returns the organization's payment history.
func HandleListPayments(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultPageSize)
	if limit < 1 || limit > 100 {
		limit = defaultPageSize
	}

	payments, err := repository.GetGlobalFactory().GetPaymentRepository().ListByOrganization(orgCtx.OrganizationID, (page-1)*limit, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list payments"})
	}

	return c.JSON(fiber.Map{"payments": payments, "page": page, "limit": limit})
}
