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

	"github.com/urfave/cli/v3"

	"github.com/autoyard/garageapi/internal/app"
	"github.com/autoyard/garageapi/internal/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "garageapi",
		Usage: "Auto-service CRUD API over SQLite",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Sources: cli.EnvVars("GARAGEAPI_CONFIG"),
				Usage:   "Optional TOML config file; flags override its values",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Sources: cli.EnvVars("GARAGEAPI_JWT_SECRET"),
				Usage:   "HMAC secret for bearer-token verification",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("GARAGEAPI_BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-user-id",
				Sources: cli.EnvVars("GARAGEAPI_BOOTSTRAP_USER_ID"),
				Usage:   "User id carried by the bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "bootstrap-role",
				Sources: cli.EnvVars("GARAGEAPI_BOOTSTRAP_ROLE"),
				Usage:   "Role carried by the bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("GARAGEAPI_WEBHOOK_URL"),
				Usage:   "Notification webhook target URL (enables push delivery)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("GARAGEAPI_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			fileCfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}

			cfg := app.Config{
				Addr:            override(c.String("addr"), fileCfg.Addr),
				DBPath:          override(c.String("db-path"), fileCfg.DBPath),
				JWTSecret:       override(c.String("jwt-secret"), fileCfg.JWTSecret),
				WebhookURL:      override(c.String("webhook-url"), fileCfg.WebhookURL),
				WebhookSecret:   override(c.String("webhook-secret"), fileCfg.WebhookSecret),
				BootstrapAPIKey: override(c.String("bootstrap-api-key"), fileCfg.BootstrapAPIKey),
				BootstrapUserID: override(c.String("bootstrap-user-id"), fileCfg.BootstrapUserID),
				BootstrapRole:   override(c.String("bootstrap-role"), fileCfg.BootstrapRole),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func override(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
