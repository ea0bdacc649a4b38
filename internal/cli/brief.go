package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/newspan/internal/acquire"
	"github.com/ppiankov/newspan/internal/brief"
	"github.com/ppiankov/newspan/internal/config"
	"github.com/ppiankov/newspan/internal/digest"
	"github.com/ppiankov/newspan/internal/store"
)

var (
	briefSources  string
	briefKeywords string
	briefFormat   string
	briefTimeout  time.Duration
	briefNoSave   bool
	noColor       bool
)

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Fetch, filter, and summarize the latest articles",
	Example: `  newspan brief
  newspan brief --sources bbc,npr --keywords "climate summit"
  newspan brief --format json --no-save`,
	RunE: briefAction,
}

func init() {
	briefCmd.Flags().StringVarP(&briefSources, "sources", "s", "", "comma-separated source ids (default: config or all)")
	briefCmd.Flags().StringVarP(&briefKeywords, "keywords", "k", "", "keywords to match in title or content")
	briefCmd.Flags().StringVarP(&briefFormat, "format", "f", "", "output format: terminal, json, markdown, csv, html")
	briefCmd.Flags().DurationVar(&briefTimeout, "timeout", 0, "overall time limit (default from config)")
	briefCmd.Flags().BoolVar(&briefNoSave, "no-save", false, "do not record summaries in history")
	briefCmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	rootCmd.AddCommand(briefCmd)
}

func briefAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	keywords := briefKeywords
	if keywords == "" && !cmd.Flags().Changed("keywords") {
		keywords = cfg.Defaults.Keywords
	}
	req := brief.Request{Sources: a.sources(briefSources), Keywords: keywords}

	timeout := cfg.Defaults.Timeout.Duration
	if briefTimeout > 0 {
		timeout = briefTimeout
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := a.briefs.Brief(ctx, req)
	switch {
	case errors.Is(err, acquire.ErrInvalidInput):
		return fmt.Errorf("%w (known sources: %s)", err, strings.Join(a.registry.IDs(), ", "))
	case errors.Is(err, acquire.ErrUnreachable):
		return fmt.Errorf("%w: check your network connection", err)
	case err != nil:
		return err
	}

	if !briefNoSave && !res.Empty() {
		saveBrief(context.WithoutCancel(ctx), cfg, req, res, logger)
	}

	format := briefFormat
	if format == "" {
		format = cfg.Output.Format
	}
	colorMode := cfg.Output.Color
	if noColor {
		colorMode = "never"
	}
	formatter, err := digest.New(format, useColor(colorMode, cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	return formatter.Format(cmd.OutOrStdout(), digest.Input{
		Items:         res.Summaries,
		DateRange:     res.DateRange,
		Keywords:      res.Keywords,
		KeywordSearch: res.KeywordSearch,
		Message:       res.Message,
		GeneratedAt:   res.GeneratedAt,
	})
}

// saveBrief records res in history. Storage problems never fail a brief.
func saveBrief(ctx context.Context, cfg *config.Config, req brief.Request, res brief.Result, logger *slog.Logger) {
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Warn("open history", "path", cfg.Storage.Path, "err", err)
		return
	}
	defer func() { _ = db.Close() }()

	if _, err := db.PruneOld(ctx, cfg.Storage.RetainDays); err != nil {
		logger.Warn("prune history", "err", err)
	}

	n, err := db.SaveRun(ctx, store.Run{
		ID:        res.RunID,
		Sources:   req.Sources,
		Keywords:  res.Keywords,
		DateRange: res.DateRange,
		Message:   res.Message,
		CreatedAt: res.GeneratedAt,
	}, res.Summaries)
	if err != nil {
		logger.Warn("save history", "run", res.RunID, "err", err)
		return
	}
	logger.Debug("saved history", "run", res.RunID, "new", n)
}
