// Command server runs the verification flow engine: the session actors, the
// HTTP surface UI applications drive them through, and the audit pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"veriflow/internal/api"
	"veriflow/internal/collect"
	"veriflow/internal/handoff"
	"veriflow/internal/identify"
	"veriflow/internal/orchestrator"
	"veriflow/internal/platform/config"
	"veriflow/internal/platform/httpserver"
	"veriflow/internal/platform/logger"
	"veriflow/internal/platform/metrics"
	platformredis "veriflow/internal/platform/redis"
	"veriflow/internal/session"
	"veriflow/internal/session/store/snapshot"
	"veriflow/internal/token"
	httptransport "veriflow/internal/transport/http"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/platform/audit"
)

const tokenIssuer = "veriflow"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := api.NewClient(cfg.BackendURL, cfg.Playbook.Key)

	snapshots, closeSnapshots, err := newSnapshotStore(cfg)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	defer closeSnapshots()

	recorder, closeAudit, err := newAuditRecorder(rootCtx, cfg, log)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	defer closeAudit()

	collectSvc := collect.New(backend, log)
	identifySvc := identify.New(backend, log, identify.WithMetrics(m))
	poller := handoff.NewPoller(backend, log, cfg.HandoffPollInterval, handoff.WithPollerMetrics(m))
	handoffSvc := handoff.NewService(backend, log, poller, cfg.HandoffTTL)

	orchSvc := orchestrator.NewService(backend, snapshots, collectSvc, handoffSvc, log, cfg.SnapshotTTL,
		orchestrator.WithMetrics(m),
		orchestrator.WithAudit(recorder),
	)
	registry := orchestrator.NewRegistry(rootCtx, orchSvc, orchestrator.WithActorMetrics(m))

	tokens := token.NewService(cfg.JWTSigningKey, tokenIssuer)
	policy := func(key string) (session.Config, error) {
		if key != cfg.Playbook.Key {
			return session.Config{}, dErrors.Newf(dErrors.CodeConfigInvalid, "unknown playbook key %q", key)
		}
		return session.Config{
			PlaybookKey:       cfg.Playbook.Key,
			OrgName:           cfg.Playbook.OrgName,
			IsLive:            cfg.Playbook.IsLive,
			SandboxSecretHash: cfg.Playbook.SandboxSecretHash,
		}, nil
	}

	handler := httptransport.NewHandler(registry, orchSvc, identifySvc, tokens, policy, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, tokens, m, log))

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		if err := recorder.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "playbook", cfg.Playbook.Key, "live", cfg.Playbook.IsLive)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// newSnapshotStore prefers Redis when configured and falls back to a local
// bbolt file, so single-node deployments need no extra infrastructure.
func newSnapshotStore(cfg config.Server) (orchestrator.SnapshotStore, func(), error) {
	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return snapshot.NewRedis(client.Client), func() { _ = client.Close() }, nil
	}

	store, err := snapshot.NewBolt(cfg.SnapshotPath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// newAuditRecorder assembles the configured sinks: postgres when a DSN is
// set, Kafka when brokers are set, an in-memory trail otherwise.
func newAuditRecorder(ctx context.Context, cfg config.Server, log *slog.Logger) (*audit.Recorder, func(), error) {
	var (
		sinks  []audit.Sink
		closer []func()
	)

	if cfg.AuditDBURL != "" {
		store, err := audit.NewPostgres(cfg.AuditDBURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, store)
		closer = append(closer, func() { _ = store.Close() })
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := audit.NewPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, pub)
		closer = append(closer, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = pub.Close(flushCtx)
		})
	}

	if len(sinks) == 0 {
		sinks = append(sinks, audit.NewMemoryStore())
	}

	closeAll := func() {
		for _, fn := range closer {
			fn()
		}
	}
	return audit.NewRecorder(log, sinks), closeAll, nil
}
