package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/smarteb/smarteb/internal/api"
	"github.com/smarteb/smarteb/internal/auth"
	"github.com/smarteb/smarteb/internal/config"
	"github.com/smarteb/smarteb/internal/consumers"
	"github.com/smarteb/smarteb/internal/cron"
	"github.com/smarteb/smarteb/internal/metrics"
	"github.com/smarteb/smarteb/internal/migrate"
	"github.com/smarteb/smarteb/internal/notification"
	"github.com/smarteb/smarteb/internal/ocr"
	"github.com/smarteb/smarteb/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:   "smarteb",
		Short: "smartEB consumer electricity billing backend",
	}
	root.AddCommand(serveCmd(), workerCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.FromEnv()

			store, err := storage.Open(ctx, storage.Config{Driver: cfg.StorageDriver, DSN: cfg.DatabaseDSN})
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer store.Close()

			var authSvc *auth.Service
			if os.Getenv("DISABLE_AUTH") == "true" {
				log.Printf("authentication disabled")
			} else {
				authSvc, err = auth.NewService(store)
				if err != nil {
					return fmt.Errorf("init auth: %w", err)
				}
				if cfg.AdminPassword != "" {
					if err := authSvc.Bootstrap(ctx, cfg.AdminPassword); err != nil {
						return fmt.Errorf("bootstrap admin: %w", err)
					}
				}
			}

			consumerSvc := consumers.NewService(store, ocr.NewClient(cfg.AIServiceURL))
			notifSvc := notification.NewService(store)

			mux := api.NewMux(api.Deps{
				Store:     store,
				Consumers: consumerSvc,
				Auth:      authSvc,
				Notifier:  notifSvc,
			})

			go reportPoolStats(ctx, store, cfg.StorageDriver)

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Printf("shutdown: %v", err)
				}
			}()

			log.Printf("smartEB listening on %s", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the payment reminder worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cron.Run(ctx, config.FromEnv())
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Run database migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()

			switch args[0] {
			case "up":
				return migrate.Up(cmd.Context(), cfg.StorageDriver, cfg.DatabaseDSN)
			case "down":
				return migrate.Down(cmd.Context(), cfg.StorageDriver, cfg.DatabaseDSN)
			case "status":
				return migrate.Status(cmd.Context(), cfg.StorageDriver, cfg.DatabaseDSN)
			default:
				return fmt.Errorf("unknown migrate direction %q", args[0])
			}
		},
	}
	return cmd
}

// reportPoolStats publishes connection pool gauges for backends that expose
// pool statistics.
func reportPoolStats(ctx context.Context, store storage.Storage, driver string) {
	pooled, ok := store.(interface{ Stat() *pgxpool.Stat })
	if !ok {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := pooled.Stat()
			metrics.UpdateDBPoolMetrics(driver,
				float64(st.TotalConns()),
				float64(st.IdleConns()),
				float64(st.AcquiredConns()),
				uint64(st.AcquireCount()))
		}
	}
}
