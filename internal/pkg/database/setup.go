package database

import (
	"fmt"
	"log"
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

func SetupDatabase() {
	var err error
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                      dsn,
			DefaultStringSize:        256,
			DisableDatetimePrecision: true,  // not supported before MySQL 5.6
			DontSupportRenameIndex:   true,  // rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:  true,  // rename column not supported before MySQL 8, MariaDB
		}), &gorm.Config{})
		if err == nil {
			DB.AutoMigrate(
				&models.Organization{},
				&models.Payment{},
				&models.Subscription{},
				&models.WebhookEvent{},
				&models.Invoice{},
				&models.Feedback{},
			)

			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// GetDB returns the global database handle.
func GetDB() *gorm.DB {
	return DB
}
