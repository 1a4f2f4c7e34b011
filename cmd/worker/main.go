// The worker consumes adjudication triggers from NATS, runs the decision
// pipeline against Postgres, and relays outbox messages back to NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"claimflow/adjudication"
	"claimflow/claim"
	"claimflow/config"
	"claimflow/db"
	"claimflow/decision"
	"claimflow/notify"
	"claimflow/policy"
)

// subjectClaimReady is published by the document pipeline once every document
// of a claim reached a terminal extraction status.
const subjectClaimReady = "claim.ready"

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.Logging)
	slog.SetDefault(log)

	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	policyRepo := policy.NewRepository(pool)
	terms, err := policy.NewCachedTermStore(policyRepo, cfg.Cache.MaxCostBytes, cfg.Cache.TermTTL)
	if err != nil {
		return err
	}
	defer terms.Close()

	var strategy decision.Strategy
	if cfg.OpenAI.APIKey != "" {
		llm, err := decision.NewLLMStrategy(decision.LLMConfig{
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxTokens,
			Timeout:   cfg.OpenAI.Timeout,
		})
		if err != nil {
			return err
		}
		strategy = llm
		log.Info("llm enrichment enabled", "model", cfg.OpenAI.Model)
	} else {
		log.Info("llm enrichment disabled; deterministic synthesis only")
	}

	svc := adjudication.NewService(
		claim.NewRepository(pool),
		policyRepo,
		terms,
		adjudication.NewRepository(pool),
		strategy,
		cfg.Adjudication,
		cfg.Retry,
		log,
	)

	queue, err := notify.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return err
	}
	defer queue.Close()

	stopConsumer, err := queue.Subscribe(ctx, subjectClaimReady, newTriggerHandler(ctx, svc, log))
	if err != nil {
		return err
	}
	defer stopConsumer()

	relay := notify.NewRelay(pool, queue, cfg.Outbox, log)

	log.Info("worker ready", "nats_url", cfg.NATS.URL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("worker stopped")
	return nil
}

type adjudicator interface {
	Adjudicate(ctx context.Context, claimID string) (decision.Decision, error)
}

// newTriggerHandler turns claim.ready messages into adjudication runs. The
// handler acks (returns nil) everything that must not be redelivered:
// malformed payloads, duplicate or stale triggers absorbed by the status CAS,
// and runs that parked the claim as failed.
func newTriggerHandler(ctx context.Context, svc adjudicator, log *slog.Logger) notify.Handler {
	return func(subject string, data []byte) error {
		var trigger struct {
			ClaimID string `json:"claim_id"`
		}
		if err := json.Unmarshal(data, &trigger); err != nil || trigger.ClaimID == "" {
			log.Error("malformed trigger dropped", "subject", subject, "payload", string(data))
			return nil // acking a poison message beats redelivering it forever
		}

		_, err := svc.Adjudicate(ctx, trigger.ClaimID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, claim.ErrAdjudicationInProgress),
			errors.Is(err, claim.ErrNotReady),
			errors.Is(err, claim.ErrClaimNotFound):
			// duplicate or stale trigger; the CAS already protected the claim
			log.Info("trigger skipped", "claim_id", trigger.ClaimID, "reason", err)
			return nil
		case errors.Is(err, adjudication.ErrParked):
			// the claim sits in failed with retry_eligible set; redelivering
			// the trigger would re-admit it through the CAS and loop the
			// same failure. Operators re-trigger parked claims.
			log.Error("claim parked after failed run", "claim_id", trigger.ClaimID, "error", err)
			return nil
		default:
			return err
		}
	}
}

func newLogger(cfg config.Logging) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", cfg.Service)
}
