package repository

import (
	"strings"
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
)

// organizationRepository implements the OrganizationRepository interface.
type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository instance.
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) Create(org *models.Organization) error {
	return r.db.Create(org).Error
}

func (r *organizationRepository) GetByID(id uint) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) GetByEmail(email string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.Where("email = ?", email).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// GetByAPIKeyHash resolves an API key hash to its organization.
func (r *organizationRepository) GetByAPIKeyHash(hash string) (*models.Organization, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var org models.Organization
	if err := r.db.Where("api_key_hash = ?", trimmed).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) Update(org *models.Organization) error {
	return r.db.Save(org).Error
}

// TouchLastActive refreshes the last-used timestamp best-effort.
func (r *organizationRepository) TouchLastActive(id uint) error {
	now := time.Now()
	return r.db.Model(&models.Organization{}).
		Where("id = ?", id).
		Update("last_active_at", &now).Error
}
