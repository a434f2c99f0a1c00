//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/himanishpuri/AutoPESQ/internal/config"
	"github.com/himanishpuri/AutoPESQ/internal/observe"
	"github.com/himanishpuri/AutoPESQ/pkg/autopesq"
	"github.com/himanishpuri/AutoPESQ/pkg/logger"
)

var (
	configPath     string
	addr           string
	dbPath         string
	outDir         string
	pesqBin        string
	allowedOrigins string
)

func init() {
	flag.StringVar(&configPath, "config", getEnvOrDefault("AUTOPESQ_CONFIG", ""), "Lab profile YAML")
	flag.StringVar(&addr, "addr", "", "Listen address (default: profile server.addr, :8080)")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("AUTOPESQ_DB_PATH", ""), "Path to SQLite database")
	flag.StringVar(&outDir, "out", getEnvOrDefault("AUTOPESQ_OUT_DIR", ""), "Artifact directory")
	flag.StringVar(&pesqBin, "pesq", getEnvOrDefault("AUTOPESQ_PESQ_BIN", ""), "PESQ binary")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadProfile() (*config.Profile, error) {
	profile := config.Default()
	if configPath != "" {
		var err error
		if profile, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if addr != "" {
		profile.Server.Addr = addr
	}
	if dbPath != "" {
		profile.DBPath = dbPath
	}
	if outDir != "" {
		profile.OutputDir = outDir
	}
	if pesqBin != "" {
		profile.PESQ.Binary = pesqBin
	}
	return profile, config.Validate(profile)
}

func parseOrigins(s string) []string {
	if s == "*" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	flag.Parse()

	profile, err := loadProfile()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.SetLevel(profile.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "autopesq-server"})
	if err != nil {
		log.Fatalf("Failed to initialise telemetry: %v", err)
	}
	defer shutdown(context.Background())

	// Built after InitProvider so the instruments land on the exporter.
	metrics := observe.DefaultMetrics()

	service, err := autopesq.NewService(
		autopesq.WithProfile(profile),
		autopesq.WithMetrics(metrics),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	cfg := &ServerConfig{
		Addr:           profile.Server.Addr,
		DBPath:         profile.DBPath,
		UploadDir:      filepath.Join(profile.OutputDir, "uploads"),
		SampleRate:     profile.SampleRate,
		MaxUploadMB:    profile.Server.MaxUploadMB,
		ScoreTimeout:   profile.PESQ.Timeout * 2,
		AllowedOrigins: parseOrigins(allowedOrigins),
	}

	server := NewServer(service, cfg, metrics)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
