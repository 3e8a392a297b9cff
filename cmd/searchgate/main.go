// cmd/searchgate/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"searchgate/internal/audit"
	"searchgate/internal/dispatcher"
	"searchgate/internal/guard"
	"searchgate/internal/httpapi"
	"searchgate/internal/mcpserver"
	"searchgate/internal/telemetry"
	"searchgate/pkg/config"
	"searchgate/pkg/connectors"
	"searchgate/pkg/db"
	"searchgate/pkg/logger"
	"searchgate/pkg/tokens"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var recorder *audit.Recorder
	if pool != nil {
		if err := audit.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		recorder = audit.NewRecorder(pool, log)
	}

	reg := connectors.Default()
	if cfg.ConnectorsFile != "" {
		loaded, err := connectors.LoadRegistry(cfg.ConnectorsFile)
		if err != nil {
			log.Fatalw("connectors", "file", cfg.ConnectorsFile, "err", err)
		}
		reg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.ConnectorsFile != "" {
		if err := connectors.Watch(ctx, cfg.ConnectorsFile, reg, log); err != nil {
			log.Warnw("connector watch unavailable", "err", err)
		}
	}

	g, err := guard.New(context.Background(), cfg.GuardPolicyPath, log)
	if err != nil {
		log.Fatalw("guard policy", "path", cfg.GuardPolicyPath, "err", err)
	}

	// Bearer verification: external IdP tokens via JWKS, then internally
	// minted exchange tokens. Verified claims are cached in redis when
	// available.
	var chain tokens.Chain
	var upstream tokens.Verifier
	if cfg.JWKSURL != "" {
		jv := &tokens.JWKSVerifier{
			Issuer:   cfg.Issuer,
			JWKSURL:  cfg.JWKSURL,
			Audience: cfg.Audience,
			Skew:     cfg.ClockSkew,
		}
		chain = append(chain, jv)
		upstream = jv
	}
	issuer := &tokens.Issuer{Secret: []byte(cfg.JWTSecretKey), Iss: cfg.InternalIss, TTL: cfg.JWTExpiration}
	if issuer.Enabled() {
		chain = append(chain, &tokens.InternalVerifier{
			Secret: []byte(cfg.JWTSecretKey),
			Issuer: cfg.InternalIss,
			Skew:   cfg.ClockSkew,
		})
	}
	var verifier tokens.Verifier
	if len(chain) > 0 {
		verifier = &tokens.CachedVerifier{Next: chain, RDB: rdb}
	}

	svc := dispatcher.New(reg, g, telemetry.NewGateway(cfg, log), recorder,
		dispatcher.NewMetrics(prometheus.DefaultRegisterer), log, dispatcher.Options{
			ConnectorTimeout: cfg.ConnectorTimeout,
			MaxSources:       cfg.MaxSources,
			MaxResults:       cfg.MaxResults,
			MaxQueryLen:      cfg.MaxQueryLen,
			DefaultSources:   cfg.DefaultSources,
		})

	api := &httpapi.API{
		Cfg:      cfg,
		Service:  svc,
		Verifier: verifier,
		Upstream: upstream,
		Issuer:   issuer,
		MCP:      mcpserver.New(cfg, svc, log).Handler(),
		Log:      log,
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router()}
	go func() {
		log.Infow("searchgate listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "sources", reg.Names())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("searchgate stopped")
}
