package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// Organization is a business account that issues invoices and collects
// customer feedback. API requests are authenticated with a per-organization
// API key; only its SHA-256 hash is stored.
type Organization struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	PublicID     string         `gorm:"type:varchar(36);uniqueIndex" json:"public_id"`
	Name         string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=2,max=150"`
	Email        string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password     string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	APIKeyHash   string         `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	Status       string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	LastActiveAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_active_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (o *Organization) Validate() error {
	v := validator.New()

	return v.Struct(o)
}

// CreateOrganization builds a new organization with a hashed password and a
// freshly generated API key. The raw key is returned exactly once; only the
// hash is persisted.
func CreateOrganization(name, email, password string) (*Organization, string, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	rawKey, keyHash, err := generateAPIKey()
	if err != nil {
		return nil, "", err
	}

	org := &Organization{
		PublicID:   uuid.NewString(),
		Name:       name,
		Email:      email,
		Password:   pw,
		APIKeyHash: keyHash,
		Status:     STATUS_ACTIVE,
	}
	if err := org.Validate(); err != nil {
		return nil, "", err
	}

	return org, rawKey, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// HashAPIKey returns the hex SHA-256 digest stored for API key lookups.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKey() (string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw := "ivf_" + hex.EncodeToString(b)
	return raw, HashAPIKey(raw), nil
}
