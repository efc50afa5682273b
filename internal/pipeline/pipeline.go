// Package pipeline wires configuration, audio handling, identification, and
// output into a single mix-analysis run shared by the CLI and the web server.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"tracklistify/internal/audio"
	"tracklistify/internal/cache"
	"tracklistify/internal/config"
	"tracklistify/internal/identify"
	"tracklistify/internal/logger"
	"tracklistify/internal/output"
	"tracklistify/internal/provider/acrcloud"
	"tracklistify/internal/provider/audd"
	"tracklistify/internal/provider/deezer"
	"tracklistify/internal/provider/spotify"
	"tracklistify/internal/ratelimit"
	"tracklistify/pkg/utils"
)

type Hooks struct {
	OnWindowsPlanned func(total int)
	OnSegment        func(done, total int)
	OnWarning        func(msg string)
}

// Outcome is the product of a completed analysis run.
type Outcome struct {
	Results  []identify.Result
	Analysis identify.Analysis
	MixInfo  audio.MixInfo
	Files    []string
}

// Run executes the full identification pipeline: resolve the input →
// segment → identify → merge → enrich → write tracklists.
func Run(ctx context.Context, cfg config.Config, log *logger.Logger, input, tmpDir string, hooks Hooks) (*Outcome, error) {
	src, err := resolveInput(ctx, cfg, log, input, tmpDir)
	if err != nil {
		return nil, err
	}

	identifier, closeFn, err := buildIdentifier(cfg, log)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if hooks.OnWindowsPlanned != nil {
		windows := audio.PlanWindows(src.Info.Duration, cfg.SegmentLength, cfg.SegmentOverlap)
		hooks.OnWindowsPlanned(len(windows))
	}
	identifier.OnSegment = hooks.OnSegment

	results, analysis, runErr := identifier.Process(ctx, src)
	if runErr != nil {
		if len(results) == 0 {
			return nil, runErr
		}
		msg := fmt.Sprintf("analysis interrupted, writing %d tracks identified so far", len(results))
		log.Warn(msg)
		if hooks.OnWarning != nil {
			hooks.OnWarning(msg)
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no tracks identified in %s", input)
	}

	writer := output.New(log, cfg.OutputDir, cfg.MinGapThreshold)
	files, err := writer.Save(cfg.OutputFormat, results, src.Info, analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to write tracklist: %w", err)
	}

	return &Outcome{
		Results:  results,
		Analysis: analysis,
		MixInfo:  src.Info,
		Files:    files,
	}, nil
}

// resolveInput turns the input argument into an opened local source,
// downloading it first when it is a URL.
func resolveInput(ctx context.Context, cfg config.Config, log *logger.Logger, input, tmpDir string) (*audio.Source, error) {
	if !utils.IsURL(input) {
		return audio.OpenSource(input)
	}

	if err := utils.CheckDependencies(); err != nil {
		return nil, fmt.Errorf("dependency check failed: %w", err)
	}

	cleaned := utils.CleanURL(input)
	dl := audio.NewDownloader(log, tmpDir)

	remote, err := dl.FetchInfo(ctx, cleaned)
	if err != nil {
		log.Warn("Could not fetch mix metadata: %v", err)
	}

	path, err := dl.Download(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to download mix: %w", err)
	}

	src, err := audio.OpenSource(path)
	if err != nil {
		return nil, err
	}

	// Prefer the origin's metadata over whatever yt-dlp embedded.
	if remote.Title != "" {
		src.Info.Title = remote.Title
	}
	if remote.Artist != "" {
		src.Info.Artist = remote.Artist
	}
	if remote.Date != "" {
		src.Info.Date = remote.Date
	}
	src.Info.Source = cleaned

	return src, nil
}

// buildIdentifier assembles the provider chain, enrichers, cache, and rate
// limiter from the configuration. The returned func releases the cache.
func buildIdentifier(cfg config.Config, log *logger.Logger) (*identify.Identifier, func(), error) {
	var providers []identify.Provider
	for _, name := range cfg.Providers {
		switch name {
		case "acrcloud":
			providers = append(providers, acrcloud.New(
				cfg.ACRCloud.AccessKey,
				cfg.ACRCloud.AccessSecret,
				cfg.ACRCloud.Host,
				time.Duration(cfg.ACRCloud.TimeoutSecs)*time.Second,
			))
		case "audd":
			providers = append(providers, audd.New(cfg.AudD.APIToken))
		default:
			return nil, nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("no identification providers configured")
	}

	var enrichers []identify.Enricher
	for _, name := range cfg.Enrichers {
		switch name {
		case "spotify":
			enrichers = append(enrichers, spotify.New(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret))
		case "deezer":
			enrichers = append(enrichers, deezer.New())
		default:
			return nil, nil, fmt.Errorf("unknown enricher %q", name)
		}
	}

	closeFn := func() {}
	var segmentCache identify.SegmentCache
	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.Cache.Directory, time.Duration(cfg.Cache.TTLHours)*time.Hour, log)
		if err != nil {
			// A broken cache degrades to uncached operation.
			log.Warn("Segment cache unavailable: %v", err)
		} else {
			segmentCache = c
			closeFn = func() {
				if err := c.Close(); err != nil {
					log.Debug("cache close failed: %v", err)
				}
			}
		}
	}

	var limiter identify.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RequestsPerMinute)
	}

	identifier := &identify.Identifier{
		Provider: identify.NewChainProvider(providers, log),
		Cache:    segmentCache,
		Limiter:  limiter,
		Logger:   log,
		Options: identify.Options{
			SegmentLength:   cfg.SegmentLength,
			SegmentOverlap:  cfg.SegmentOverlap,
			MinConfidence:   float32(cfg.MinConfidence),
			TimeThreshold:   cfg.TimeThreshold,
			MaxDuplicates:   cfg.MaxDuplicates,
			MinGapThreshold: cfg.MinGapThreshold,
			AcquireTimeout:  time.Duration(cfg.RateLimit.AcquireTimeoutSecs) * time.Second,
		},
	}
	if len(enrichers) > 0 {
		identifier.Enricher = identify.NewChainEnricher(enrichers, log)
	}

	return identifier, closeFn, nil
}
