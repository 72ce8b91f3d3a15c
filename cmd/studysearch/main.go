package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/velorahq/studysearch/internal/config"
	"github.com/velorahq/studysearch/internal/logger"
	"github.com/velorahq/studysearch/internal/mcp"
	"github.com/velorahq/studysearch/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version and build information")
		configPath  = flag.String("config", "studysearch.yml", "path to configuration file")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("StudySearch MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		fmt.Printf("Vector Extension: %v\n", storage.VectorExtensionAvailable)
		os.Exit(0)
	}

	// Local development convenience; a missing .env is not an error
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration: %v", err)
		os.Exit(1)
	}

	logger.SetVerbose(*verbose || cfg.Verbose)

	// stdout is reserved for the MCP protocol; all logging goes to stderr
	logger.Info("StudySearch MCP Server v%s starting", version)
	logger.Info("Build Mode: %s, Driver: %s, Vector Extension: %v",
		storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable)

	server, err := mcp.NewServer(cfg)
	if err != nil {
		logger.Error("failed to create MCP server: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received signal %v, shutting down", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("server error: %v", err)
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}
