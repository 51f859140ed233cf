package entitlements

import (
	"strings"
	"time"

	"github.com/invisifeed/invisifeed/app/models"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// UnlimitedInvoices marks plans without a monthly invoice quota.
const UnlimitedInvoices = -1

// NormalizePlan maps arbitrary plan strings onto the closed plan set.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	default:
		return PlanFree
	}
}

// PlanFor resolves the effective plan from a subscription. A nil, inactive
// or lapsed subscription falls back to free.
func PlanFor(sub *models.Subscription, now time.Time) Plan {
	if sub == nil || !sub.IsCurrent(now) {
		return PlanFree
	}
	return NormalizePlan(sub.Plan)
}

// MonthlyInvoiceLimit returns how many invoices a plan may issue per
// calendar month.
func MonthlyInvoiceLimit(plan Plan) int {
	switch plan {
	case PlanPro:
		return UnlimitedInvoices
	default:
		return 10
	}
}

// AllowsAIInsights reports whether the plan includes AI-generated feedback
// summaries on the dashboard.
func AllowsAIInsights(plan Plan) bool {
	return plan == PlanPro
}

// WithinInvoiceQuota checks an issued-this-month count against the plan.
func WithinInvoiceQuota(plan Plan, issuedThisMonth int64) bool {
	limit := MonthlyInvoiceLimit(plan)
	if limit == UnlimitedInvoices {
		return true
	}
	return issuedThisMonth < int64(limit)
}
