// Command pipeline serves the build-request pipeline: requirements
// extraction, architecture mapping, governance review, and code
// synthesis behind a single HTTP API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trustbuild-labs/trustbuild-go/internal/governance"
	"github.com/trustbuild-labs/trustbuild-go/internal/kitexport"
	"github.com/trustbuild-labs/trustbuild-go/internal/orchestrator"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/auth"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/env"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/httpserver"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/objectstore"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/postgres"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/textgen"
	"github.com/trustbuild-labs/trustbuild-go/internal/policy"
	repopg "github.com/trustbuild-labs/trustbuild-go/internal/repo/postgres"
	"github.com/trustbuild-labs/trustbuild-go/internal/stages"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("TRUSTBUILD_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("TRUSTBUILD_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	kb, err := policy.Load(env.String("TRUSTBUILD_POLICY_FILE", ""))
	if err != nil {
		logger.Error("policy load failed", "error", err)
		os.Exit(2)
	}
	logger.Info("policy knowledge base loaded", "rules", kb.Len())

	maxPasses, err := env.Int("TRUSTBUILD_GUARDRAIL_MAX_PASSES", governance.DefaultMaxPasses)
	if err != nil {
		logger.Error("invalid guardrail config", "error", err)
		os.Exit(2)
	}
	guardrail, err := governance.New(kb, governance.Config{MaxPasses: maxPasses})
	if err != nil {
		logger.Error("guardrail init failed", "error", err)
		os.Exit(2)
	}

	genCfg, err := textgen.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid textgen config", "error", err)
		os.Exit(2)
	}
	var generator textgen.Generator
	mode := "simulation"
	if genCfg.Live() {
		client, err := textgen.NewClient(genCfg)
		if err != nil {
			logger.Error("watsonx client init failed", "error", err)
			os.Exit(2)
		}
		generator = client
		mode = "live"
	} else {
		generator = textgen.NewSimulator()
	}
	logger.Info("text generation configured", "mode", mode)

	orchCfg, err := orchestrator.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid orchestrator config", "error", err)
		os.Exit(2)
	}
	orch, err := orchestrator.New(
		stages.NewExtractor(generator),
		stages.NewMapper(generator),
		guardrail,
		stages.NewSynthesizer(generator),
		orchCfg,
	)
	if err != nil {
		logger.Error("orchestrator init failed", "error", err)
		os.Exit(2)
	}

	api := newPipelineAPI(logger, orch, mode)
	readiness := []httpserver.ReadinessCheck{}

	archiveEnabled, err := env.Bool("TRUSTBUILD_ARCHIVE_ENABLED", false)
	if err != nil {
		logger.Error("invalid archive flag", "error", err)
		os.Exit(2)
	}
	if archiveEnabled {
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			os.Exit(2)
		}
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		api.archive = repopg.NewRunStore(db)
		api.auditDB = db
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return db.PingContext(checkCtx)
			},
		})
	}

	exportEnabled, err := env.Bool("TRUSTBUILD_KIT_EXPORT_ENABLED", false)
	if err != nil {
		logger.Error("invalid kit export flag", "error", err)
		os.Exit(2)
	}
	if exportEnabled {
		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		storeClient, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBucket(startupCtx, storeClient, storeCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()

		exporter, err := kitexport.NewWithClient(storeClient, storeCfg.BucketKits)
		if err != nil {
			logger.Error("kit exporter init failed", "error", err)
			os.Exit(2)
		}
		api.export = exporter
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "minio",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return objectstore.CheckBucket(checkCtx, storeClient, storeCfg)
			},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks(serviceName, readiness...))
	api.register(mux)

	var handler http.Handler = mux

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	if authCfg.Mode == auth.ModeOIDC {
		authenticator, err := auth.NewOIDCAuthenticator(ctx, authCfg)
		if err != nil {
			logger.Error("oidc init failed", "error", err)
			os.Exit(2)
		}
		handler = auth.Middleware{
			Logger:        logger,
			Authenticator: authenticator,
			SkipPrefixes:  []string{"/healthz", "/readyz", "/api/health"},
		}.Wrap(handler)
	}

	corsOrigins := env.Strings("TRUSTBUILD_CORS_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:8080",
	})
	handler = httpserver.CORS(corsOrigins, handler)
	handler = httpserver.Wrap(logger, serviceName, handler)

	cfg := httpserver.Config{
		Service:         serviceName,
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, cfg, handler); err != nil && err != http.ErrServerClosed {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}
