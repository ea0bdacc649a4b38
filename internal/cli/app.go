package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/newspan/internal/acquire"
	"github.com/ppiankov/newspan/internal/brief"
	"github.com/ppiankov/newspan/internal/cache"
	"github.com/ppiankov/newspan/internal/config"
	"github.com/ppiankov/newspan/internal/extract"
	"github.com/ppiankov/newspan/internal/fetch"
	"github.com/ppiankov/newspan/internal/privacy"
	"github.com/ppiankov/newspan/internal/source"
	"github.com/ppiankov/newspan/internal/summarize"
)

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg      *config.Config
	registry *source.Registry
	cache    cache.Cache
	client   *fetch.Client
	briefs   *brief.Service
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := source.NewRegistry(source.Merge(source.Defaults(), cfg.Sources))
	if err != nil {
		return nil, fmt.Errorf("build source registry: %w", err)
	}

	pageCache, err := newCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	client := fetch.New(fetch.Options{
		Timeout:       cfg.Fetch.Timeout.Duration,
		UserAgent:     cfg.Fetch.UserAgent,
		Retries:       cfg.Fetch.Retries,
		Proxies:       cfg.Fetch.Proxies,
		RespectRobots: cfg.Fetch.RespectRobots,
		Cache:         pageCache,
		CacheTTL:      cfg.Cache.TTL.Duration,
		Logger:        logger,
	})

	orchestrator := acquire.New(client, registry, acquire.Options{
		MaxConcurrency: cfg.Fetch.MaxConcurrency,
		Logger:         logger,
	})

	extractor := extract.New(registry.SelectorMap(), true, logger)

	service := brief.New(orchestrator, client, extractor, newSummarizer(cfg, logger), brief.Options{
		FullContent: cfg.Fetch.FullContentEnabled(),
		Workers:     cfg.Fetch.EnrichWorkers,
		Delay:       cfg.Fetch.EnrichDelayDuration(),
		Logger:      logger,
	})

	return &app{
		cfg:      cfg,
		registry: registry,
		cache:    pageCache,
		client:   client,
		briefs:   service,
	}, nil
}

func (a *app) Close() error {
	if a == nil || a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

// sources returns the ids to read: flag value, then config default, then
// every registered outlet.
func (a *app) sources(flag string) []string {
	if ids := splitList(flag); len(ids) > 0 {
		return ids
	}
	if len(a.cfg.Defaults.Sources) > 0 {
		return a.cfg.Defaults.Sources
	}
	return a.registry.IDs()
}

func newCache(cfg *config.Config, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "none":
		return cache.Nop{}, nil
	case "redis":
		r, err := cache.NewRedis(cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return r, nil
	default:
		return cache.NewMemory(), nil
	}
}

func newSummarizer(cfg *config.Config, logger *slog.Logger) summarize.Summarizer {
	heuristic := summarize.HeuristicSummarizer{}
	if cfg.Summarize.Mode != "llm" {
		return heuristic
	}
	llm := cfg.Summarize.LLM
	s := summarize.NewLLM(llm.Endpoint, llm.APIKey, llm.Model, llm.MaxTokens, heuristic, logger)
	// Patterns were checked when the config was loaded.
	if redactor, err := privacy.New(cfg.Summarize.Redact); err == nil && redactor.Len() > 0 {
		s = s.WithRedactor(redactor)
	}
	return s
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
