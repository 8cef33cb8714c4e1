package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/metro-proximity/internal/api"
	"github.com/sells-group/metro-proximity/internal/geo"
	"github.com/sells-group/metro-proximity/internal/proximity"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve counts, masks and comparisons over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		method, err := geo.ParseMethod(cfg.Proximity.Method)
		if err != nil {
			return err
		}
		refMethod, err := geo.ParseMethod(cfg.Proximity.ReferenceMethod)
		if err != nil {
			return err
		}

		snap, err := loadSnapshot(ctx)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cmd)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		srvAPI := api.New(snap, proximity.NewCache(cfg.Cache.MaxEntries, cfg.Cache.TTL()), st, api.Options{
			Radius:          cfg.Proximity.RadiusMeters,
			Method:          method,
			ReferenceMethod: refMethod,
			RateLimit:       cfg.Server.RateLimit,
			RateBurst:       cfg.Server.RateBurst,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srvAPI.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("incidents", len(snap.Incidents)),
			zap.Int("stations", len(snap.Stations)),
			zap.String("snapshot", snap.Hash),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
