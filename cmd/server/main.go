package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/driftgate/backend/internal/api"
	"github.com/driftgate/backend/internal/config"
	"github.com/driftgate/backend/internal/ingest"
	"github.com/driftgate/backend/internal/pipeline"
	"github.com/driftgate/backend/internal/services"
	"github.com/driftgate/backend/internal/session"
	"github.com/driftgate/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, "driftgate.yaml")
	if env := os.Getenv("DRIFTGATE_CONFIG"); env != "" {
		configPath = env
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Initialize artifact storage
	store, err := storage.NewLocalStore(cfg.Storage.ArtifactsDirectory)
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Analysis service client, shared by the four service interfaces
	analysis := services.NewAnalysisClient(cfg.Services.AnalysisURL, time.Duration(cfg.Services.AnalysisTimeout)*time.Second)
	if cfg.Services.WaitForAnalysis {
		fmt.Printf("[Main] Waiting for analysis service at %s\n", cfg.Services.AnalysisURL)
		if err := analysis.WaitReady(2 * time.Minute); err != nil {
			fmt.Printf("Analysis service did not become ready: %v\n", err)
			os.Exit(1)
		}
	}

	// Processing pipeline with bounded transfer slots
	pipe := pipeline.New(pipeline.Deps{
		Transfer:   services.NewLocalTransfer(store),
		Models:     analysis,
		Drift:      analysis,
		Synthesis:  analysis,
		Validation: analysis,
		Store:      store,
	}, cfg.Processing.MaxConcurrentTransfers)

	// Workflow manager plus scheduled cleanup of aged workflows
	workflows := session.NewManagerWithCapacity(cfg.Processing.MaxWorkflows)

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(cfg.Processing.CleanupIntervalMinutes).Minutes().Do(func() {
		workflows.CleanupAged(time.Duration(cfg.Processing.WorkflowTimeoutMinutes) * time.Minute)
	})
	scheduler.StartAsync()
	defer scheduler.Stop()

	// Optional cloud connector
	deps := &api.Dependencies{
		Store:       store,
		Workflows:   workflows,
		Pipeline:    pipe,
		URLClient:   &http.Client{Timeout: time.Duration(cfg.Services.URLImportTimeout) * time.Second},
		URLParallel: cfg.Services.MaxURLImportParallel,
		Version:     Version,
	}
	if cfg.Services.CloudEndpoint != "" {
		cloud, err := ingest.NewCloudClient(cfg.Services.CloudEndpoint, cfg.Services.CloudAccessKey, cfg.Services.CloudSecretKey, cfg.Services.CloudUseSSL)
		if err != nil {
			fmt.Printf("Failed to initialize cloud connector: %v\n", err)
			os.Exit(1)
		}
		deps.Cloud = cloud
		fmt.Printf("[Main] Cloud connector enabled: %s\n", cfg.Services.CloudEndpoint)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.HasSuffix(path, "/files") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "/stream") ||
				c.Request().Header.Get("Accept") == "text/event-stream" ||
				strings.Contains(c.Request().URL.Path, "/ws")
		},
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	handlers := api.NewHandlers(deps)
	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           DriftGate Upload Orchestrator                   ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Artifacts: %-46s║\n", cfg.Storage.ArtifactsDirectory)
	fmt.Printf("║  Analysis:  %-46s║\n", cfg.Services.AnalysisURL)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}
