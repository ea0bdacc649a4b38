package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/newspan/internal/store"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show saved history statistics",
	RunE:  statsAction,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(statsCmd)
}

func statsAction(cmd *cobra.Command, _ []string) error {
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
	stats, err := db.Stats(cmd.Context(), now)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	runs, err := db.RecentRuns(cmd.Context(), 5)
	if err != nil {
		return fmt.Errorf("get runs: %w", err)
	}

	switch statsFormat {
	case "json":
		return printStatsJSON(cmd.OutOrStdout(), stats, runs)
	case "terminal", "":
		printStats(cmd.OutOrStdout(), stats, runs, now)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", statsFormat)
	}
}

type jsonStatsOutput struct {
	Total     int             `json:"total"`
	Today     int             `json:"today"`
	Sources   int             `json:"sources"`
	Runs      int             `json:"runs"`
	BySource  []jsonSourceRow `json:"by_source"`
	LastSaved string          `json:"last_saved,omitempty"`
	Recent    []jsonRun       `json:"recent_runs"`
}

type jsonSourceRow struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type jsonRun struct {
	ID        string `json:"id"`
	Keywords  string `json:"keywords,omitempty"`
	DateRange string `json:"date_range,omitempty"`
	Articles  int    `json:"articles"`
	CreatedAt string `json:"created_at"`
}

func printStatsJSON(w io.Writer, stats store.Stats, runs []store.Run) error {
	out := jsonStatsOutput{
		Total:    stats.Total,
		Today:    stats.Today,
		Sources:  stats.Sources,
		Runs:     stats.Runs,
		BySource: make([]jsonSourceRow, 0, len(stats.BySource)),
		Recent:   make([]jsonRun, 0, len(runs)),
	}
	for _, sc := range stats.BySource {
		out.BySource = append(out.BySource, jsonSourceRow{Source: sc.Source, Count: sc.Count})
	}
	if !stats.LastSaved.IsZero() {
		out.LastSaved = stats.LastSaved.UTC().Format(time.RFC3339)
	}
	for _, r := range runs {
		out.Recent = append(out.Recent, jsonRun{
			ID:        r.ID,
			Keywords:  r.Keywords,
			DateRange: r.DateRange,
			Articles:  r.ArticleCount,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printStats(w io.Writer, stats store.Stats, runs []store.Run, now time.Time) {
	if stats.Total == 0 && stats.Runs == 0 {
		fmt.Fprintln(w, "No saved articles. Run 'newspan brief' first.")
		return
	}

	fmt.Fprintf(w, "newspan stats: %s articles from %d sources, %s briefs\n\n",
		humanize.Comma(int64(stats.Total)), stats.Sources, humanize.Comma(int64(stats.Runs)))
	fmt.Fprintf(w, "  Saved today:  %d\n", stats.Today)
	if !stats.LastSaved.IsZero() {
		fmt.Fprintf(w, "  Last saved:   %s\n", humanize.RelTime(stats.LastSaved, now, "ago", "from now"))
	}
	fmt.Fprintln(w)

	if len(stats.BySource) > 0 {
		fmt.Fprintln(w, "--- By Source ---")
		fmt.Fprintln(w)
		for _, sc := range stats.BySource {
			fmt.Fprintf(w, "  %-10s %5d  (%.1f%%)\n", sc.Source, sc.Count, pct(sc.Count, stats.Total))
		}
		fmt.Fprintln(w)
	}

	if len(runs) > 0 {
		fmt.Fprintln(w, "--- Recent Briefs ---")
		fmt.Fprintln(w)
		for _, r := range runs {
			kw := r.Keywords
			if kw == "" {
				kw = "(no keywords)"
			}
			fmt.Fprintf(w, "  %s  %2d articles  %-10s %s\n",
				r.CreatedAt.Local().Format("2006-01-02 15:04"), r.ArticleCount, r.DateRange, kw)
		}
		fmt.Fprintln(w)
	}
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
