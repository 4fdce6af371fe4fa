// Package main is the entry point for the filegate server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/filegate/filegate/pkg/api"
	"github.com/filegate/filegate/pkg/config"
	"github.com/filegate/filegate/pkg/logging"
	"github.com/filegate/filegate/pkg/perm"
	"github.com/filegate/filegate/pkg/services"
	"github.com/filegate/filegate/pkg/storage"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "filegate"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	store, err := storage.NewAccountStore(storage.ProviderConfig{
		Type: storage.ProviderType(cfg.Storage.Type),
		File: &storage.FileProviderConfig{Path: cfg.Storage.AccountsFile},
	})
	if err != nil {
		log.Fatalf("Failed to open account store: %v", err)
	}

	resolver := perm.NewResolver(nil)
	accountService := services.NewAccountService(
		store,
		resolver,
		logger,
		[]byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Auth.TokenExpiration)*time.Hour,
	)

	server := api.NewServer(cfg, accountService, logger)

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-stop:
		logger.Info("shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the specified path or creates a
// default one.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", *configPath, err)
		}
	} else {
		locations := []string{
			"./config.json",
			"./configs/config.json",
			filepath.Join(os.Getenv("HOME"), ".filegate", "config.json"),
			"/etc/filegate/config.json",
		}

		for _, path := range locations {
			if loadedCfg, err := config.LoadConfig(path); err == nil {
				cfg = loadedCfg
				break
			}
		}

		// If no config file is found, create a default one
		if cfg == nil {
			cfg = config.DefaultConfig()

			defaultPath := filepath.Join(os.Getenv("HOME"), ".filegate", "config.json")
			if err := config.SaveConfig(cfg, defaultPath); err != nil {
				return nil, fmt.Errorf("failed to save default config: %w", err)
			}

			fmt.Printf("Created default configuration at %s\n", defaultPath)
		}
	}

	// Sessions die with the process when no secret is configured; that is
	// acceptable for a single-node server.
	if cfg.Auth.JWTSecret == "" {
		secret, err := generateRandomKey(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
	}

	return cfg, nil
}

// generateRandomKey generates a random hex key of the given byte length
func generateRandomKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
