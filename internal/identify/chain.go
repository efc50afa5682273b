package identify

import (
	"context"
	"errors"

	"tracklistify/internal/logger"
)

// ChainProvider tries multiple providers in order, returning the first
// successful match. Authentication failures abort the chain so a run does
// not hammer a service with bad credentials.
type ChainProvider struct {
	providers []Provider
	logger    *logger.Logger
}

// NewChainProvider creates a ChainProvider that queries providers in order.
func NewChainProvider(providers []Provider, log *logger.Logger) *ChainProvider {
	return &ChainProvider{providers: providers, logger: log}
}

func (c *ChainProvider) Name() string { return "chain" }

func (c *ChainProvider) Identify(ctx context.Context, sample []byte) (*Match, error) {
	var lastErr error
	for _, p := range c.providers {
		match, err := p.Identify(ctx, sample)
		if err != nil {
			if errors.Is(err, ErrAuth) || ctx.Err() != nil {
				return nil, err
			}
			c.logger.Debug("provider %s failed: %v", p.Name(), err)
			lastErr = err
			continue
		}
		if match != nil {
			return match, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoMatch
}

// ChainEnricher tries multiple enrichers in order, returning metadata from
// the first one that finds anything.
type ChainEnricher struct {
	enrichers []Enricher
	logger    *logger.Logger
}

// NewChainEnricher creates a ChainEnricher that queries enrichers in order.
func NewChainEnricher(enrichers []Enricher, log *logger.Logger) *ChainEnricher {
	return &ChainEnricher{enrichers: enrichers, logger: log}
}

func (c *ChainEnricher) Name() string { return "chain" }

func (c *ChainEnricher) Enrich(ctx context.Context, artist, title string) (*Extra, error) {
	for _, e := range c.enrichers {
		extra, err := e.Enrich(ctx, artist, title)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Debug("enricher %s failed: %v", e.Name(), err)
			continue
		}
		if extra != nil {
			return extra, nil
		}
	}
	return nil, nil
}
