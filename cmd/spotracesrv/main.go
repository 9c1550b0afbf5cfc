package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"spotrace-backend/pkg/api"
	"spotrace-backend/pkg/auth"
	"spotrace-backend/pkg/logging"
	"spotrace-backend/pkg/server"
	"spotrace-backend/pkg/ws"
)

func main() {
	var (
		dbPath      string
		host        string
		port        int
		order       int
		maxPlayers  int
		maxRounds   int
		shuffle     bool
		seed        int64
		maxMsgBytes int64
		tokenSecret string
		logFile     string
		debugLevel  string
	)
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database file (created if missing)")
	flag.StringVar(&host, "host", "127.0.0.1", "Host to listen on")
	flag.IntVar(&port, "port", 8080, "Port to listen on")
	flag.IntVar(&order, "order", 7, "Prime order of the deck design")
	flag.IntVar(&maxPlayers, "maxplayers", 4, "Default max players per session")
	flag.IntVar(&maxRounds, "maxrounds", 10, "Default rounds per session")
	flag.BoolVar(&shuffle, "shuffle", true, "Shuffle the deck order per game")
	flag.Int64Var(&seed, "seed", 0, "Deterministic RNG seed for decks (0 = random)")
	flag.Int64Var(&maxMsgBytes, "maxmsgbytes", 32*1024, "Max inbound websocket message size in bytes")
	flag.StringVar(&tokenSecret, "tokensecret", "", "HMAC secret for connection tokens (empty = accept any token, dev only)")
	flag.StringVar(&logFile, "logfile", "", "Rotating log file path (empty = stderr only)")
	flag.StringVar(&debugLevel, "debuglevel", "info", "Logging level: trace, debug, info, warn, error")
	flag.Parse()

	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "spotrace.sqlite")
	}

	logBackend, err := logging.NewBackend(logging.Config{
		LogFile:    logFile,
		DebugLevel: debugLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logBackend.Close()
	log := logBackend.Logger("MAIN")

	stores, closeDB, err := server.NewDatabase(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer closeDB()

	cfg := server.DefaultConfig()
	cfg.DesignOrder = order
	cfg.DefaultMaxPlayers = maxPlayers
	cfg.DefaultMaxRounds = maxRounds
	cfg.ShuffleDeck = shuffle
	cfg.RandomSeed = seed
	cfg.MaxInboundMessageBytes = maxMsgBytes

	srv, err := server.NewServer(cfg, stores, logBackend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var tokens auth.TokenValidator
	var minter auth.TokenMinter
	if tokenSecret != "" {
		v := auth.NewHMACValidator(tokenSecret)
		tokens, minter = v, v
	} else {
		log.Warnf("No token secret configured; accepting any token (dev mode)")
		tokens, minter = auth.AllowAll{}, auth.AllowAll{}
	}

	hub := ws.NewHub(logBackend.Logger("HUB"))
	disp := ws.NewDispatcher(srv, hub, tokens, logBackend.Logger("DISP"))
	router := api.NewRouter(srv, disp, minter, logBackend.Logger("HTTP"))

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpSrv := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Infof("Listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "http serve error: %v\n", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Infof("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Error finalizing sessions: %v", err)
	}
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP shutdown error: %v", err)
	}
}
