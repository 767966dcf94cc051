package fx

import (
	"context"
	"log/slog"
)

// Provider builds converters over the rate table currently in storage.
// Rates are read fresh on every call; there is no snapshotting, so every
// computation uses the rate in effect at computation time.
type Provider struct {
	repo   Repository
	logger *slog.Logger
}

// NewProvider wires the rate repository.
func NewProvider(repo Repository, logger *slog.Logger) *Provider {
	return &Provider{repo: repo, logger: logger}
}

// Converter loads the current rate table and returns a converter over it.
func (p *Provider) Converter(ctx context.Context) (*Converter, error) {
	table, err := p.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewConverter(table, p.logger), nil
}
