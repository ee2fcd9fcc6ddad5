// Package main runs the Connect-Four server: the session arbiter behind a
// WebSocket endpoint for browsers and a Telnet endpoint for terminals.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/config"
	"github.com/cory-johannsen/connect4/internal/frontend/handlers"
	"github.com/cory-johannsen/connect4/internal/frontend/telnet"
	"github.com/cory-johannsen/connect4/internal/frontend/ws"
	"github.com/cory-johannsen/connect4/internal/game/peer"
	"github.com/cory-johannsen/connect4/internal/game/room"
	"github.com/cory-johannsen/connect4/internal/gameserver"
	"github.com/cory-johannsen/connect4/internal/observability"
	"github.com/cory-johannsen/connect4/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (defaults and CONNECT4_* env only when empty)")
	printConfig := flag.Bool("print-config", false, "print the effective configuration as YAML and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatalf("rendering config: %v", err)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	codes, err := room.NewCodeGenerator(room.NewCryptoSource(), cfg.Rooms.CodeLength)
	if err != nil {
		logger.Fatal("configuring room codes", zap.Error(err))
	}
	registry := room.NewRegistry(codes, cfg.Rooms.MaxCreateAttempts)
	peers := peer.NewManager(cfg.Server.PeerOutboxSize)
	arbiter := gameserver.NewArbiter(registry, peers, logger.Named("arbiter"))

	lifecycle := server.NewLifecycle(logger)

	if cfg.WebSocket.Enabled {
		wsServer := ws.NewServer(cfg.WebSocket, arbiter, logger.Named("websocket"))
		httpServer := &http.Server{
			Addr:              cfg.WebSocket.Addr(),
			Handler:           wsServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		httpServer.RegisterOnShutdown(wsServer.Close)
		lifecycle.Add("websocket", &server.HTTPService{
			Server:          httpServer,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		})
	}

	if cfg.Telnet.Enabled {
		acceptor := telnet.NewAcceptor(cfg.Telnet, handlers.NewGameHandler(arbiter, logger.Named("telnet")), logger.Named("telnet"))
		lifecycle.Add("telnet", &server.FuncService{
			StartFn: acceptor.ListenAndServe,
			StopFn:  acceptor.Stop,
		})
	}

	logger.Info("connect4 initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Bool("websocket", cfg.WebSocket.Enabled),
		zap.String("websocket_addr", cfg.WebSocket.Addr()),
		zap.String("websocket_path", cfg.WebSocket.Path),
		zap.Bool("telnet", cfg.Telnet.Enabled),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
