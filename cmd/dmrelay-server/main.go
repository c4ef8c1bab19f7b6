// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmrelay/dmrelay/config"
	"github.com/dmrelay/dmrelay/internal/logger"
	"github.com/dmrelay/dmrelay/pkg/health"
	"github.com/dmrelay/dmrelay/pkg/storage/postgres"
	"github.com/dmrelay/dmrelay/server/api"
	"github.com/dmrelay/dmrelay/server/sessioncookie"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "dmrelay-server",
	Short: "dmrelay relay server - mailbox relay for end-to-end encrypted direct messages",
	RunE:  runServer,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVar(&configDir, "config-dir", "config", "directory containing environment config files")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewDefaultLogger()
	log.Info("starting dmrelay-server", logger.String("environment", cfg.Environment))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := postgres.NewStore(ctx, &postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	defer store.Close()

	hashKey, err := sessionKeyFromEnv(cfg.Session.HashKeyEnv, 32)
	if err != nil {
		return err
	}
	blockKey, err := sessionKeyFromEnv(cfg.Session.BlockKeyEnv, 32)
	if err != nil {
		return err
	}
	cookies := sessioncookie.New(cfg.Session.CookieName, hashKey, blockKey, cfg.Session.TTL)

	apiServer := api.New(api.Options{
		Store:              store,
		Cookies:            cookies,
		Logger:             log,
		UserCacheSize:      cfg.Session.UserCacheSize,
		Argon2TimeCost:     cfg.Argon2.TimeCost,
		Argon2MemoryKiB:    cfg.Argon2.MemoryKiB,
		Argon2Parallelism:  cfg.Argon2.Parallelism,
		Argon2KeyLength:    cfg.Argon2.KeyLength,
		Argon2SaltLength:   cfg.Argon2.SaltLength,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.BindAddr, cfg.Server.Port),
		Handler:           apiServer.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	var healthServer *health.Server
	if cfg.Health.Enabled {
		checker := health.NewChecker(store)
		healthServer = health.NewServer(checker, log, cfg.Health.Port)
		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
	}

	go func() {
		log.Info("listening", logger.String("addr", httpServer.Addr))
		var serveErr error
		if cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != "" {
			serveErr = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serveErr = httpServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal("server error", logger.Error(serveErr))
		}
	}()

	waitForShutdownSignal()
	log.Info("shutting down")

	apiServer.Shutdown(context.Background())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Error(err))
	}
	if healthServer != nil {
		_ = healthServer.Stop(shutdownCtx)
	}

	return nil
}

func waitForShutdownSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

// sessionKeyFromEnv reads a hex-encoded key from the named environment
// variable. wantLen is the required decoded byte length (32 for the
// securecookie hash and block keys).
func sessionKeyFromEnv(envVar string, wantLen int) ([]byte, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil, fmt.Errorf("environment variable %s is not set", envVar)
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", envVar, err)
	}
	if len(key) != wantLen {
		return nil, fmt.Errorf("%s must decode to %d bytes, got %d", envVar, wantLen, len(key))
	}
	return key, nil
}
