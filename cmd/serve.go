package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"rosettagw/api"
	"rosettagw/config"
	"rosettagw/construction"
	"rosettagw/exception"
	"rosettagw/ledgerclient"
	"rosettagw/logx"
	"rosettagw/monitoring"
	"rosettagw/rosetta"
	"rosettagw/store"
	"rosettagw/syncer"
)

var serveFlags struct {
	configPath string
	tuningPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway: sync engine plus Rosetta API",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(); err != nil {
			logx.Error("SERVE", "gateway failed: ", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveFlags.configPath, "config", "c", "", "gateway.yml config file (defaults apply when omitted)")
	serveCmd.Flags().StringVar(&serveFlags.tuningPath, "tuning", "", "sync/construction tuning .ini file")
}

func runServe() error {
	cfg := config.Default()
	if serveFlags.configPath != "" {
		loaded, err := config.Load(serveFlags.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	syncCfg := config.DefaultSyncConfig()
	conCfg := config.DefaultConstructionConfig()
	if serveFlags.tuningPath != "" {
		var err error
		if syncCfg, err = config.LoadSyncConfig(serveFlags.tuningPath); err != nil {
			return fmt.Errorf("load sync tuning: %w", err)
		}
		if conCfg, err = config.LoadConstructionConfig(serveFlags.tuningPath); err != nil {
			return fmt.Errorf("load construction tuning: %w", err)
		}
	}

	monitoring.InitMetrics()

	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	lc := ledgerclient.New(cfg.Ledger.Endpoint)
	defer lc.Close()

	engine, err := syncer.New(lc, st, syncCfg)
	if err != nil {
		return fmt.Errorf("init sync engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// the gateway is useless without its sync engine or API server, so a
	// panic in either takes the process down
	exception.SafeGoWithPanic("sync-engine", func() {
		engine.Run(ctx)
	})

	if cfg.Server.MetricsListen != "" {
		metricsMux := http.NewServeMux()
		monitoring.RegisterMetrics(metricsMux)
		exception.SafeGo("metrics-server", func() {
			logx.Info("SERVE", "serving metrics on ", cfg.Server.MetricsListen)
			if err := http.ListenAndServe(cfg.Server.MetricsListen, metricsMux); err != nil {
				logx.Error("SERVE", "metrics server stopped: ", err)
			}
		})
	}

	currency := rosetta.Currency{Symbol: cfg.Currency.Symbol, Decimals: cfg.Currency.Decimals}
	conSvc := construction.NewService(st, lc, currency, conCfg)
	srv := api.NewServer(cfg, st, engine, conSvc)

	errCh := make(chan error, 1)
	exception.SafeGoWithPanic("api-server", func() {
		errCh <- srv.Serve(cfg.Server.Listen)
	})

	select {
	case <-ctx.Done():
		logx.Info("SERVE", "shutdown signal received")
		return nil
	case err := <-errCh:
		return err
	}
}
