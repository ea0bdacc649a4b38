package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ppiankov/newspan/internal/server"
	"github.com/ppiankov/newspan/internal/store"
)

var (
	serveAddr      string
	serveNoHistory bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard JSON API",
	RunE:  serveAction,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serveNoHistory, "no-history", false, "do not save or serve history")
	rootCmd.AddCommand(serveCmd)
}

func serveAction(cmd *cobra.Command, _ []string) error {
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

	var history server.History
	if !serveNoHistory {
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = db.Close() }()
		if n, err := db.PruneOld(cmd.Context(), cfg.Storage.RetainDays); err != nil {
			logger.Warn("prune history", "err", err)
		} else if n > 0 {
			logger.Info("pruned history", "deleted", n)
		}
		history = db
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(a.briefs, history, server.Options{
		Sources:        a.registry.All(),
		DefaultSources: a.sources(""),
		BriefTimeout:   cfg.Defaults.Timeout.Duration,
		Logger:         logger,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "newspan dashboard API on %s\n", addr)
	return srv.Run(ctx, addr)
}
