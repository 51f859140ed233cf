package controllers

import (
	"log"
	"sync"

	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/aiinsights"
	"github.com/invisifeed/invisifeed/internal/pkg/database"
	"github.com/invisifeed/invisifeed/internal/pkg/env"
	"github.com/invisifeed/invisifeed/internal/pkg/invoicing"
	"github.com/invisifeed/invisifeed/internal/pkg/payments"
	"github.com/invisifeed/invisifeed/internal/pkg/statistics"
	"github.com/invisifeed/invisifeed/internal/pkg/storage"
)

// Lazily constructed shared services. Tests swap the factory funcs below
// for fakes before hitting the handlers.
var (
	invoicingOnce sync.Once
	invoicingSvc  *invoicing.Service

	statsOnce      sync.Once
	statsCollector *statistics.Collector

	newReconciler = func() *payments.Reconciler {
		return payments.NewReconcilerFromDB(database.GetDB())
	}

	newOrderCreator = func() (payments.OrderCreator, error) {
		return payments.NewProviderClientFromEnv()
	}

	insightsGenerator aiinsights.Generator
)

func getInvoicingService() *invoicing.Service {
	invoicingOnce.Do(func() {
		if invoicingSvc != nil {
			return
		}

		cfg, err := storage.LoadConfig()
		if err != nil {
			log.Printf("invalid object storage config: %v", err)
			cfg = &storage.Config{}
		}

		var store storage.ObjectStore = storage.NoopStore{}
		if cfg.IsEnabled() {
			client, err := storage.NewClient(cfg)
			if err != nil {
				log.Printf("object storage unavailable, falling back to noop store: %v", err)
			} else {
				store = client
			}
		}

		repos := repository.GetGlobalRepositories()
		invoicingSvc = invoicing.NewService(
			repos.Invoice,
			store,
			cfg,
			getInsightsGenerator(),
			invoicing.FPDFRenderer{},
			publicDomain(),
		)
	})
	return invoicingSvc
}

func getStatsCollector() *statistics.Collector {
	statsOnce.Do(func() {
		if statsCollector != nil {
			return
		}
		repos := repository.GetGlobalRepositories()
		statsCollector = statistics.NewCollector(repos.Invoice, repos.Feedback)
	})
	return statsCollector
}

func getInsightsGenerator() aiinsights.Generator {
	if insightsGenerator == nil {
		insightsGenerator = aiinsights.NewGeneratorFromEnv()
	}
	return insightsGenerator
}

func publicDomain() string {
	return env.GetEnv("PUBLIC_DOMAIN", "http://localhost:3000")
}
