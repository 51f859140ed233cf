package repository

import (
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
)

// feedbackRepository implements the FeedbackRepository interface.
type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository creates a new feedback repository instance.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(fb *models.Feedback) error {
	return r.db.Create(fb).Error
}

func (r *feedbackRepository) GetByInvoiceID(invoiceID uint) (*models.Feedback, error) {
	var fb models.Feedback
	if err := r.db.Where("invoice_id = ?", invoiceID).First(&fb).Error; err != nil {
		return nil, err
	}
	return &fb, nil
}

func (r *feedbackRepository) ListByOrganization(organizationID uint, offset, limit int) ([]models.Feedback, error) {
	var fbs []models.Feedback
	err := r.db.Where("organization_id = ?", organizationID).
		Order("submitted_at DESC").
		Offset(offset).Limit(limit).
		Find(&fbs).Error
	return fbs, err
}

func (r *feedbackRepository) CountByOrganization(organizationID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Feedback{}).
		Where("organization_id = ?", organizationID).
		Count(&count).Error
	return count, err
}

// GetDailyStats buckets feedback volume and average overall rating per day
// for the dashboard chart.
func (r *feedbackRepository) GetDailyStats(organizationID uint, startDate, endDate time.Time) ([]models.DailyFeedbackStats, error) {
	var stats []models.DailyFeedbackStats
	err := r.db.Model(&models.Feedback{}).
		Select("DATE(submitted_at) as date, COUNT(*) as count, AVG(overall_rating) as average_rating").
		Where("organization_id = ? AND submitted_at BETWEEN ? AND ?", organizationID, startDate, endDate).
		Group("DATE(submitted_at)").
		Order("date ASC").
		Scan(&stats).Error
	return stats, err
}

func (r *feedbackRepository) AverageOverallRating(organizationID uint) (float64, error) {
	var avg *float64
	err := r.db.Model(&models.Feedback{}).
		Select("AVG(overall_rating)").
		Where("organization_id = ?", organizationID).
		Row().Scan(&avg)
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// RecentComments returns the newest non-empty comments for AI summaries.
func (r *feedbackRepository) RecentComments(organizationID uint, limit int) ([]string, error) {
	var comments []string
	err := r.db.Model(&models.Feedback{}).
		Where("organization_id = ? AND comment <> ''", organizationID).
		Order("submitted_at DESC").
		Limit(limit).
		Pluck("comment", &comments).Error
	return comments, err
}
