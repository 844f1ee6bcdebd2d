package services

import (
	"log/slog"

	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_oxr/internal/core/ports/services"
	"github.com/SscSPs/money_oxr/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, logger *slog.Logger) (*portssvc.ServiceContainer, error) {
	store, err := NewRatesStore(repos.RateTable, repos.Fetcher, repos.Parser, Options{
		AppID:          cfg.OXRAppID,
		SourceCurrency: cfg.SourceCurrency,
		Storage:        repos.Snapshots,
		MaxAge:         cfg.MaxAge,
		OnAPIFailure:   cfg.OnAPIFailure,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	return &portssvc.ServiceContainer{
		ExchangeRate: store,
	}, nil
}
