// Package main provides the chat server binary. It accepts one optional
// positional argument, the listen address, defaulting to 127.0.0.1:8080.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/chatd/internal/chat"
	"github.com/cory-johannsen/chatd/internal/config"
	"github.com/cory-johannsen/chatd/internal/observability"
	"github.com/cory-johannsen/chatd/internal/server"
	"github.com/cory-johannsen/chatd/internal/transport"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to optional YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if addr := flag.Arg(0); addr != "" {
		cfg.Listen.Addr = addr
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting chat server",
		zap.String("addr", cfg.Listen.Addr),
		zap.Duration("startup", time.Since(start)),
	)

	chatServer := chat.NewServer(cfg.Chat, logger)
	acceptor := transport.NewAcceptor(cfg.Listen, chatServer, logger)

	lc := server.NewLifecycle(logger)
	lc.Add("acceptor", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	if err := lc.Run(context.Background()); err != nil {
		logger.Fatal("running server", zap.Error(err))
	}
}
