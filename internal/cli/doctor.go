package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/newspan/internal/config"
	"github.com/ppiankov/newspan/internal/feed"
	"github.com/ppiankov/newspan/internal/fetch"
	"github.com/ppiankov/newspan/internal/source"
	"github.com/ppiankov/newspan/internal/store"
)

var (
	doctorSkipFeeds   bool
	doctorFeedTimeout time.Duration
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage, and feed reachability",
	RunE:  doctorAction,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorSkipFeeds, "skip-feeds", false, "do not contact feeds")
	doctorCmd.Flags().DurationVar(&doctorFeedTimeout, "feed-timeout", 10*time.Second, "per-feed timeout")
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	ok := true

	// Config dir is optional; defaults apply without it.
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printInfo(w, "config directory %s not found, using defaults (run 'newspan init')", configDir)
	} else {
		printCheck(w, true, "config directory %s", configDir)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(w, false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}

	registry, err := source.NewRegistry(source.Merge(source.Defaults(), cfg.Sources))
	if err != nil {
		printCheck(w, false, "sources: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(w, true, "config (%d sources, summarize=%s, cache=%s)",
		len(registry.IDs()), cfg.Summarize.Mode, cfg.Cache.Backend)

	if found, unknown := registry.Resolve(cfg.Defaults.Sources); len(unknown) > 0 {
		printCheck(w, false, "defaults.sources: unknown ids %v", unknown)
		ok = false
	} else if len(found) > 0 {
		printCheck(w, true, "defaults.sources (%d)", len(found))
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(w, false, "database: %v", err)
		ok = false
	} else {
		printCheck(w, true, "database %s", cfg.Storage.Path)
		_ = db.Close()
	}

	if cfg.Cache.Backend == "redis" {
		c, err := newCache(cfg, slog.Default())
		if err != nil {
			printCheck(w, false, "redis cache: %v", err)
			ok = false
		} else {
			printCheck(w, true, "redis cache %s", cfg.Cache.Redis.Addr)
			_ = c.Close()
		}
	}

	if cfg.Summarize.Mode == "llm" && cfg.Summarize.LLM.APIKeyEnv != "" && cfg.Summarize.LLM.APIKey == "" {
		printCheck(w, false, "summarize.llm: %s is not set", cfg.Summarize.LLM.APIKeyEnv)
		ok = false
	}

	if !doctorSkipFeeds {
		if !checkFeeds(cmd.Context(), w, cfg, registry) {
			ok = false
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Fprintln(w, "\nAll checks passed.")
	return nil
}

type feedCheck struct {
	source string
	url    string
	items  int
	err    error
}

// checkFeeds fetches every primary feed once, without proxies or retries.
// A source passes when at least one of its feeds parses.
func checkFeeds(ctx context.Context, w io.Writer, cfg *config.Config, registry *source.Registry) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	client := fetch.New(fetch.Options{
		Timeout:   doctorFeedTimeout,
		UserAgent: cfg.Fetch.UserAgent,
		Retries:   1,
		Proxies:   []string{},
	})
	parser := feed.NewParser()

	var checks []feedCheck
	for _, s := range registry.All() {
		for _, u := range s.Feeds {
			checks = append(checks, feedCheck{source: s.ID, url: u})
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.Fetch.MaxConcurrency)
	for i := range checks {
		wg.Add(1)
		go func(c *feedCheck) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			body, err := client.FetchFeed(ctx, c.url)
			if err != nil {
				c.err = err
				return
			}
			items, err := parser.Parse(body, c.source, true)
			c.items, c.err = len(items), err
		}(&checks[i])
	}
	wg.Wait()

	fmt.Fprintln(w)
	healthy := make(map[string]bool)
	for _, c := range checks {
		if c.err != nil {
			printInfo(w, "feed %s: %v", c.url, c.err)
			continue
		}
		healthy[c.source] = true
		printCheck(w, true, "feed %s (%d recent items)", c.url, c.items)
	}

	ok := true
	for _, s := range registry.All() {
		if len(s.Feeds) > 0 && !healthy[s.ID] {
			printCheck(w, false, "source %s: no reachable feed", s.ID)
			ok = false
		}
	}
	return ok
}

func printCheck(w io.Writer, pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Fprintf(w, "[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[INFO] %s\n", fmt.Sprintf(format, args...))
}
