// Package main 模型列表探测工具：用当前凭证拉取 v1 / v1beta 模型列表并输出
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"skillforge-api/internal/application/roadmap"
	"skillforge-api/internal/config"
	"skillforge-api/internal/wire"
	"skillforge-api/pkg/logger"
)

func main() {
	timeout := flag.Int("timeout", roadmap.ListingTimeoutUnits, "per-listing timeout in seconds")
	pretty := flag.Bool("pretty", true, "indent JSON output")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 标准输出留给列表 JSON
	logger.InitWriter(os.Stderr, cfg.Observability.Logging.Level, "text")
	ctx := context.Background()

	if cfg.Gemini.APIKey == "" {
		logger.Fatal(ctx, "GEMINI_API_KEY is not set", nil)
	}

	collector, err := wire.InitializeDiagnostics(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize diagnostics", err)
	}

	listings := collector.Collect(ctx, *timeout)

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(listings); err != nil {
		logger.Fatal(ctx, "failed to encode listings", err)
	}

	if listings.V1.Get("error") != nil || listings.V1Beta.Get("error") != nil {
		logger.Warn(ctx, "one or more listings failed")
		os.Exit(2)
	}
}
