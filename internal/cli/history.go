package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/newspan/internal/article"
	"github.com/ppiankov/newspan/internal/digest"
	"github.com/ppiankov/newspan/internal/store"
)

var (
	historyQuery  string
	historySource string
	historyPeriod string
	historyLimit  int
	historyFormat string

	exportFormat string
	exportOutput string

	clearYes bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved summaries",
	RunE:  historyAction,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved summaries as JSON, CSV, HTML, or Markdown",
	RunE:  exportAction,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all saved summaries",
	RunE:  clearAction,
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, exportCmd} {
		c.Flags().StringVarP(&historyQuery, "query", "q", "", "match title, summary, or source")
		c.Flags().StringVar(&historySource, "source", "", "only this source tag (e.g. BBC)")
		c.Flags().StringVar(&historyPeriod, "period", store.PeriodAll, "today, week, month, or all")
		c.Flags().IntVarP(&historyLimit, "limit", "n", 0, "maximum entries (0 for no limit)")
	}
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "", "output format: terminal, json, markdown, csv, html")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", digest.FormatJSON, "json, csv, html, or markdown")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip confirmation")

	rootCmd.AddCommand(historyCmd, exportCmd, clearCmd)
}

func historyFilter(now time.Time) (store.Filter, error) {
	since, err := store.PeriodStart(historyPeriod, now)
	if err != nil {
		return store.Filter{}, err
	}
	return store.Filter{
		Query:  historyQuery,
		Source: historySource,
		Since:  since,
		Limit:  historyLimit,
	}, nil
}

// historyInput turns saved entries into formatter input, recomputing ages.
func historyInput(entries []store.Entry, now time.Time) digest.Input {
	in := digest.Input{
		Keywords:    historyQuery,
		GeneratedAt: now,
		DateRange:   "history",
		Message:     "No saved articles. Run 'newspan brief' first.",
	}
	for _, e := range entries {
		item := e.Summary
		item.TimeAgo = article.TimeAgo(item.PublishedAt, now)
		in.Items = append(in.Items, item)
	}
	return in
}

func historyAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	f, err := historyFilter(now)
	if err != nil {
		return err
	}
	entries, err := db.List(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	format := historyFormat
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
	return formatter.Format(cmd.OutOrStdout(), historyInput(entries, now))
}

func exportAction(cmd *cobra.Command, _ []string) error {
	if strings.EqualFold(exportFormat, digest.FormatTerminal) {
		return fmt.Errorf("terminal is not an export format")
	}
	formatter, err := digest.New(exportFormat, false)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	f, err := historyFilter(now)
	if err != nil {
		return err
	}
	entries, err := db.List(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	if exportOutput == "" {
		return formatter.Format(cmd.OutOrStdout(), historyInput(entries, now))
	}

	file, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", exportOutput, err)
	}
	w := bufio.NewWriter(file)
	if err := formatter.Format(w, historyInput(entries, now)); err != nil {
		_ = file.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", exportOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d articles to %s\n", len(entries), exportOutput)
	return nil
}

func clearAction(cmd *cobra.Command, _ []string) error {
	if !clearYes {
		fmt.Fprint(cmd.OutOrStdout(), "Delete all saved summaries? [y/N] ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	n, err := db.Clear(cmd.Context())
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d saved articles.\n", n)
	return nil
}
