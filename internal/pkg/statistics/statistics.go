package statistics

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/cache"
)

const (
	// CacheKeyDashboard is formatted with the organization ID.
	CacheKeyDashboard = "statistics:dashboard:%d"
	CacheExpiration   = 30 * time.Minute

	// DashboardWindowDays is how far back the daily feedback chart reaches.
	DashboardWindowDays = 30
)

// DashboardMetrics is the aggregate view served to the dashboard.
type DashboardMetrics struct {
	TotalInvoices   int64                       `json:"total_invoices"`
	TotalFeedback   int64                       `json:"total_feedback"`
	ResponseRate    float64                     `json:"response_rate"`
	AverageRating   float64                     `json:"average_rating"`
	DailyFeedback   []models.DailyFeedbackStats `json:"daily_feedback"`
	WindowStartDate string                      `json:"window_start_date"`
	GeneratedAt     time.Time                   `json:"generated_at"`
}

// Collector computes dashboard metrics and caches them in Redis.
type Collector struct {
	invoices repository.InvoiceRepository
	feedback repository.FeedbackRepository

	// Injection points for tests.
	cacheGet func(key string) (string, error)
	cacheSet func(key string, value interface{}, expiration time.Duration) error
	cacheDel func(key string) error
	now      func() time.Time
}

// NewCollector builds a collector backed by the shared Redis cache.
func NewCollector(invoices repository.InvoiceRepository, feedback repository.FeedbackRepository) *Collector {
	return &Collector{
		invoices: invoices,
		feedback: feedback,
		cacheGet: cache.Get,
		cacheSet: cache.Set,
		cacheDel: cache.Delete,
		now:      time.Now,
	}
}

// GetDashboardMetrics returns cached metrics when fresh, otherwise
// recomputes from the database and refills the cache.
func (c *Collector) GetDashboardMetrics(organizationID uint) (*DashboardMetrics, error) {
	key := fmt.Sprintf(CacheKeyDashboard, organizationID)

	if raw, err := c.cacheGet(key); err == nil && raw != "" {
		var cached DashboardMetrics
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
		log.Printf("discarding unreadable dashboard cache entry for organization %d", organizationID)
	}

	metrics, err := c.compute(organizationID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(metrics); err == nil {
		if err := c.cacheSet(key, string(payload), CacheExpiration); err != nil {
			log.Printf("failed to cache dashboard metrics for organization %d: %v", organizationID, err)
		}
	}

	return metrics, nil
}

// Invalidate drops the cached metrics, e.g. after new feedback arrives.
func (c *Collector) Invalidate(organizationID uint) {
	key := fmt.Sprintf(CacheKeyDashboard, organizationID)
	if err := c.cacheDel(key); err != nil {
		log.Printf("failed to invalidate dashboard cache for organization %d: %v", organizationID, err)
	}
}

func (c *Collector) compute(organizationID uint) (*DashboardMetrics, error) {
	now := c.now()
	windowStart := now.AddDate(0, 0, -DashboardWindowDays)

	totalInvoices, err := c.invoices.CountByOrganization(organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}

	totalFeedback, err := c.feedback.CountByOrganization(organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}

	avgRating, err := c.feedback.AverageOverallRating(organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average rating: %w", err)
	}

	daily, err := c.feedback.GetDailyStats(organizationID, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily feedback stats: %w", err)
	}

	var responseRate float64
	if totalInvoices > 0 {
		responseRate = float64(totalFeedback) / float64(totalInvoices)
	}

	return &DashboardMetrics{
		TotalInvoices:   totalInvoices,
		TotalFeedback:   totalFeedback,
		ResponseRate:    responseRate,
		AverageRating:   avgRating,
		DailyFeedback:   daily,
		WindowStartDate: windowStart.Format("2006-01-02"),
		GeneratedAt:     now,
	}, nil
}
