package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/atthub/atthub/internal/bootstrap"
	"github.com/atthub/atthub/internal/deploy"
	"github.com/atthub/atthub/internal/dispatch"
	gh "github.com/atthub/atthub/internal/github"
	"github.com/atthub/atthub/internal/gitops"
	"github.com/atthub/atthub/internal/httpapi"
	"github.com/atthub/atthub/internal/mcp"
	"github.com/atthub/atthub/internal/pool"
	"github.com/atthub/atthub/internal/registry"
	"github.com/atthub/atthub/internal/runtime"
	"github.com/atthub/atthub/internal/store"
	"github.com/atthub/atthub/internal/testrun"
	"github.com/atthub/atthub/internal/workflow"
)

var (
	version   = ""
	gitCommit = ""
	buildTime = ""
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var st store.Store
	storeKind := strings.TrimSpace(envOrDefault("ATT_STORE", "postgres"))
	switch storeKind {
	case "memory":
		st = store.NewMemory()
	case "postgres":
		pg, err := store.NewPostgres(requireEnv("DATABASE_URL"))
		if err != nil {
			logger.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		st = pg
	default:
		logger.Error("invalid ATT_STORE", "value", storeKind, "allowed", "postgres,memory")
		os.Exit(1)
	}
	defer st.Close()

	git := gitops.New(nil)
	reg := registry.New(st, git, envOrDefault("ATT_BASE_DIR", "./projects"), logger)

	testTimeout := 10 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("ATT_TEST_TIMEOUT_SECONDS")); raw != "" {
		secs, parseErr := strconv.Atoi(raw)
		if parseErr != nil || secs <= 0 {
			logger.Error("invalid ATT_TEST_TIMEOUT_SECONDS", "value", raw)
			os.Exit(1)
		}
		testTimeout = time.Duration(secs) * time.Second
	}
	testRunner := envOrDefault("ATT_TEST_CMD", "pytest")
	harness := testrun.New(testrun.Config{
		Runner:         testRunner,
		DefaultTimeout: testTimeout,
	})

	maxLogLines := 1000
	if raw := strings.TrimSpace(os.Getenv("ATT_MAX_LOG_LINES")); raw != "" {
		n, parseErr := strconv.Atoi(raw)
		if parseErr != nil || n <= 0 {
			logger.Error("invalid ATT_MAX_LOG_LINES", "value", raw)
			os.Exit(1)
		}
		maxLogLines = n
	}
	supervisor := runtime.NewSupervisor(maxLogLines, logger)
	facade := deploy.New(supervisor, logger)

	poolCfg := pool.Config{}
	if raw := strings.TrimSpace(os.Getenv("ATT_POOL_UNREACHABLE_AFTER")); raw != "" {
		n, parseErr := strconv.Atoi(raw)
		if parseErr != nil || n <= 0 {
			logger.Error("invalid ATT_POOL_UNREACHABLE_AFTER", "value", raw)
			os.Exit(1)
		}
		poolCfg.UnreachableAfter = n
	}
	if raw := strings.TrimSpace(os.Getenv("ATT_POOL_MAX_BACKOFF_SECONDS")); raw != "" {
		secs, parseErr := strconv.Atoi(raw)
		if parseErr != nil || secs <= 0 {
			logger.Error("invalid ATT_POOL_MAX_BACKOFF_SECONDS", "value", raw)
			os.Exit(1)
		}
		poolCfg.MaxBackoff = time.Duration(secs) * time.Second
	}
	serverPool := pool.New(poolCfg, pool.NewHTTPProber(nil), logger)

	svc := dispatch.NewServices(st, reg, git, harness, supervisor, facade, serverPool, logger)
	wf := workflow.New(git, harness, st, logger)

	// Hosted CI and PR phases run only when a GitHub App is configured;
	// without one the pipeline skips them.
	providers := bootstrap.Providers{}
	if rawAppID := strings.TrimSpace(os.Getenv("ATT_GITHUB_APP_ID")); rawAppID != "" {
		appID, parseErr := strconv.ParseInt(rawAppID, 10, 64)
		if parseErr != nil {
			logger.Error("invalid ATT_GITHUB_APP_ID", "value", rawAppID)
			os.Exit(1)
		}
		var installationID int64
		if raw := strings.TrimSpace(os.Getenv("ATT_GITHUB_INSTALLATION_ID")); raw != "" {
			installationID, parseErr = strconv.ParseInt(raw, 10, 64)
			if parseErr != nil {
				logger.Error("invalid ATT_GITHUB_INSTALLATION_ID", "value", raw)
				os.Exit(1)
			}
		}
		ghClient, ghErr := gh.NewClient(gh.Config{
			AppID:          appID,
			InstallationID: installationID,
			KeyPath:        requireEnv("ATT_GITHUB_PRIVATE_KEY_PATH"),
			Owner:          requireEnv("ATT_GITHUB_OWNER"),
			Repo:           requireEnv("ATT_GITHUB_REPO"),
		})
		if ghErr != nil {
			logger.Error("github client init failed", "err", ghErr)
			os.Exit(1)
		}
		providers = gh.Providers(ghClient,
			os.Getenv("ATT_GITHUB_CI_REF"),
			os.Getenv("ATT_GITHUB_MERGE_METHOD"),
		)
		logger.Info("github providers enabled", "app_id", appID)
	}

	boot := bootstrap.New(bootstrap.Config{}, git, wf, st, providers, logger)

	httpAddr := envOrDefault("ATT_HTTP_LISTEN", "0.0.0.0:8080")
	jwtSecret := []byte(os.Getenv("ATT_JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logger.Warn("ATT_JWT_SECRET not set, API authentication disabled")
	}

	logger.Info("effective config",
		"store", storeKind,
		"http_listen", httpAddr,
		"test_runner", testRunner,
		"max_log_lines", maxLogLines,
		"version", version,
		"git_commit", gitCommit,
		"build_time", buildTime,
	)

	mcpHandler := mcp.NewHandler(svc, logger)
	server := httpapi.NewServer(httpAddr, svc, wf, boot, mcpHandler, logger, jwtSecret)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	server.Shutdown(ctx)
	logger.Info("shutdown complete")
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required env var missing", "key", key)
		os.Exit(1)
	}
	return v
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
