package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/novacare/nova/internal/brain"
	"github.com/novacare/nova/internal/call"
	"github.com/novacare/nova/internal/cascade"
	"github.com/novacare/nova/internal/config"
	"github.com/novacare/nova/internal/flow"
	"github.com/novacare/nova/internal/httpapi"
	"github.com/novacare/nova/internal/observability"
	"github.com/novacare/nova/internal/retrieval"
	"github.com/novacare/nova/internal/session"
	"github.com/novacare/nova/internal/transcript"
)

// BuildResult bundles every wired component of the service.
type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Store      *session.Store
	Controller *call.Controller
	Metrics    *observability.Metrics
	Monitor    *httpapi.MonitorHub

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build constructs the full service graph from configuration.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	archive, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}

	generator, err := brain.NewAdapter(brain.Config{
		Mode:    cfg.BrainAdapterMode,
		HTTPURL: cfg.BrainHTTPURL,
		Timeout: cfg.BrainTimeout,
	})
	if err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("brain adapter init failed: %w", err)
	}
	// When a real backend is configured, keep the deterministic local adapter
	// behind it so an outage degrades replies instead of silencing the call.
	if strings.TrimSpace(cfg.BrainHTTPURL) != "" {
		generator = brain.NewFailoverAdapter(generator, brain.NewMockAdapter())
	}

	retriever, err := retrieval.New(retrieval.Config{
		Mode:    cfg.RetrievalMode,
		HTTPURL: cfg.RetrievalHTTPURL,
		Timeout: cfg.RetrievalTimeout,
	})
	if err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("retriever init failed: %w", err)
	}

	store := session.NewStore(cfg.SessionInactivityTimeout)
	monitor := httpapi.NewMonitorHub()
	orchestrator := cascade.NewOrchestrator(generator, retriever, metrics, cfg.BrainTimeout, cfg.RetrievalTimeout)
	controller := call.NewController(store, orchestrator, flow.NewAttemptPolicy(cfg.MaxAttempts), archive, metrics, monitor)
	store.SetExpireHook(controller.HandleExpiry)

	api := httpapi.New(cfg, controller, store, metrics, monitor)

	cleanup := func() error {
		if err := archive.Close(); err != nil {
			return err
		}
		return nil
	}

	log.Printf("brain adapter mode: %s, retrieval mode: %s", cfg.BrainAdapterMode, cfg.RetrievalMode)

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Store:      store,
		Controller: controller,
		Metrics:    metrics,
		Monitor:    monitor,
		Cleanup:    cleanup,
	}, nil
}
