/*
 * Copyright 2026 Gridwatch Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gridwatch/otmap/pkg/broadcast"
	"github.com/gridwatch/otmap/pkg/classifier"
	"github.com/gridwatch/otmap/pkg/collector"
	"github.com/gridwatch/otmap/pkg/config"
	"github.com/gridwatch/otmap/pkg/logger"
	"github.com/gridwatch/otmap/pkg/pipeline"
	"github.com/gridwatch/otmap/pkg/resolver"
	"github.com/gridwatch/otmap/pkg/risk"
	"github.com/gridwatch/otmap/pkg/store"
)

const shutdownTimeout = 10 * time.Second

type natsConfig struct {
	URL          string `json:"url"`
	StreamName   string `json:"stream_name"`
	ConsumerName string `json:"consumer_name"`
}

type appConfig struct {
	ListenAddr string                 `json:"listen_addr"`
	Logging    logger.Config          `json:"logging"`
	Database   *store.PostgresConfig  `json:"database,omitempty"`
	NATS       *natsConfig            `json:"nats,omitempty"`
	Collector  collector.Config       `json:"collector"`
	Targets    []collector.TargetSpec `json:"targets,omitempty"`
}

func main() {
	configPath := flag.String("config", "/etc/otmap/otmap.json", "Path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig

	loader := &config.FileLoader{}
	if err := loader.Load(ctx, *configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}

	logr, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	st, err := openStore(ctx, &cfg)
	if err != nil {
		logr.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	cls, err := classifier.New(classifier.DefaultConfig())
	if err != nil {
		logr.Fatal().Err(err).Msg("Failed to build classifier")
	}

	res := resolver.New(st, logr)
	analyzer := risk.New(risk.DefaultConfig())
	hub := broadcast.NewHub(logr)
	defer hub.Close()

	pipe := pipeline.New(st, res, cls, analyzer, hub, logr)

	coll := collector.New(cfg.Collector, logr)
	for _, spec := range cfg.Targets {
		coll.AddTarget(spec)
	}

	coll.Start(ctx)
	defer coll.Stop()

	go pipe.Run(ctx, coll.Events())

	if cfg.NATS != nil {
		if err := startConsumer(ctx, cfg.NATS, pipe, logr); err != nil {
			logr.Fatal().Err(err).Msg("Failed to start NATS consumer")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info().Str("addr", cfg.ListenAddr).Msg("listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logr.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error().Err(err).Msg("HTTP shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *appConfig) (store.Store, error) {
	if cfg.Database == nil {
		return store.NewMemoryStore(), nil
	}

	pool, err := store.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	return store.NewPostgresStore(pool), nil
}

func startConsumer(ctx context.Context, cfg *natsConfig, pipe *pipeline.Pipeline, logr logger.Logger) error {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()

		return err
	}

	consumer, err := pipeline.NewConsumer(js, cfg.StreamName, cfg.ConsumerName, pipe, logr)
	if err != nil {
		nc.Close()

		return err
	}

	go func() {
		defer nc.Close()

		consumer.ProcessMessages(ctx)
	}()

	return nil
}
