// Package app assembles the service graph from configuration. It is shared
// by the HTTP server and the command-line client.
package app

import (
	"fmt"
	"log/slog"

	"github.com/baxromumarov/econ-indicators/internal/cache"
	"github.com/baxromumarov/econ-indicators/internal/config"
	"github.com/baxromumarov/econ-indicators/internal/core"
	"github.com/baxromumarov/econ-indicators/internal/httpx"
	"github.com/baxromumarov/econ-indicators/internal/source"
	"github.com/baxromumarov/econ-indicators/internal/store"
)

// NewFetcher builds the outbound transport described by the http section.
func NewFetcher(cfg config.HTTPConfig) (httpx.Fetcher, error) {
	return httpx.New(cfg.Transport, httpx.Options{
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.Timeout(),
		Every:         cfg.Every(),
		Burst:         cfg.Burst,
		RespectRobots: cfg.RespectRobots,
	})
}

// NewRegistry registers every enabled source, all sharing one fetcher.
func NewRegistry(cfg config.SourcesConfig, fetcher httpx.Fetcher) (*source.Registry, error) {
	reg := source.NewRegistry()

	if cfg.DataMapper.Enabled {
		dm, err := source.NewDataMapper(cfg.DataMapper.BaseURL, fetcher)
		if err != nil {
			return nil, fmt.Errorf("datamapper: %w", err)
		}
		reg.Register(dm)
	}
	if cfg.WorldBank.Enabled {
		wb, err := source.NewWorldBank(cfg.WorldBank.BaseURL, cfg.WorldBank.PageSize, fetcher)
		if err != nil {
			return nil, fmt.Errorf("worldbank: %w", err)
		}
		reg.Register(wb)
	}
	if cfg.SDMX.Enabled {
		sd, err := source.NewSDMX(cfg.SDMX.BaseURL, cfg.SDMX.Database, cfg.SDMX.Frequency, fetcher)
		if err != nil {
			return nil, fmt.Errorf("sdmx: %w", err)
		}
		reg.Register(sd)
	}

	if len(reg.Names()) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return reg, nil
}

// OpenStore connects and migrates the configured database. An empty DSN
// returns a nil store.
func OpenStore(cfg config.DatabaseConfig) (*store.Store, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	st, err := store.NewStore(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := st.RunMigrations(cfg.Schema); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// NewService builds the fetch service. st may be nil.
func NewService(cfg *config.Config, st *store.Store, logger *slog.Logger) (*core.Service, error) {
	fetcher, err := NewFetcher(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(cfg.Sources, fetcher)
	if err != nil {
		return nil, err
	}

	// A nil *store.Store must not become a non-nil interface.
	var tables core.TableStore
	if st != nil {
		tables = st
	}
	c := cache.New(cfg.Cache.Size, cfg.Cache.TTL())
	return core.NewService(reg, c, tables, cfg.FanOut.Concurrency, logger), nil
}

// Watchlist converts the watchlist section into a fetch query.
func Watchlist(cfg config.WatchlistConfig) core.Query {
	return core.Query{
		Source:     cfg.Source,
		Entities:   cfg.Entities,
		Indicators: cfg.Indicators,
		From:       cfg.From,
		To:         cfg.To,
	}
}
