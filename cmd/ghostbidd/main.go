// Command ghostbidd runs the auction engine daemon: the HTTP gateway, the
// websocket event feed and the finalization relayer, wired to a remote
// comparator service for sealed winner selection.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/3l500nfy/Ghostbid/comparatorapi"
	"github.com/3l500nfy/Ghostbid/core"
	"github.com/3l500nfy/Ghostbid/gateway"
	"github.com/3l500nfy/Ghostbid/relay"
)

type daemonConfig struct {
	listenAddr string

	manager core.Identity
	relayer core.Identity

	comparatorAddr    string
	comparatorCID     uint32
	comparatorPort    uint32
	comparatorKeyPath string

	relayInterval time.Duration
}

func loadConfig() (daemonConfig, error) {
	// Missing .env is fine; the environment may be set by the supervisor.
	_ = godotenv.Load()

	cfg := daemonConfig{
		listenAddr:        envOr("GHOSTBID_LISTEN_ADDR", ":8080"),
		manager:           core.Identity(envOr("GHOSTBID_MANAGER", "manager")),
		relayer:           core.Identity(envOr("GHOSTBID_RELAYER", "relayer")),
		comparatorAddr:    os.Getenv("GHOSTBID_COMPARATOR_ADDR"),
		comparatorKeyPath: os.Getenv("GHOSTBID_COMPARATOR_VERIFY_KEY"),
		relayInterval:     5 * time.Second,
	}

	if v := os.Getenv("GHOSTBID_RELAY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("parse GHOSTBID_RELAY_INTERVAL: %w", err)
		}
		cfg.relayInterval = d
	}

	cid, err := envUint32("GHOSTBID_COMPARATOR_CID")
	if err != nil {
		return cfg, err
	}
	port, err := envUint32("GHOSTBID_COMPARATOR_PORT")
	if err != nil {
		return cfg, err
	}
	cfg.comparatorCID, cfg.comparatorPort = cid, port

	if cfg.comparatorAddr == "" && cfg.comparatorCID == 0 {
		return cfg, errors.New("one of GHOSTBID_COMPARATOR_ADDR or GHOSTBID_COMPARATOR_CID is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint32(key string) (uint32, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return uint32(n), nil
}

func buildComparator(cfg daemonConfig) (core.Comparator, error) {
	var dialer comparatorapi.Dialer
	if cfg.comparatorCID != 0 {
		dialer = comparatorapi.VsockDialer{ContextID: cfg.comparatorCID, Port: cfg.comparatorPort}
	} else {
		dialer = comparatorapi.TCPDialer{Addr: cfg.comparatorAddr}
	}

	var opts []comparatorapi.ClientOption
	if cfg.comparatorKeyPath != "" {
		pub, err := loadVerifyKey(cfg.comparatorKeyPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, comparatorapi.WithVerifyKey(pub))
	}
	return comparatorapi.NewClient(dialer, opts...), nil
}

func loadVerifyKey(path string) (*ecdsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verify key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse verify key: %w", err)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("verify key in %s is not ECDSA", path)
	}
	return pub, nil
}

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "ghostbidd",
	})

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("configuration", "err", err)
	}

	comparator, err := buildComparator(cfg)
	if err != nil {
		logger.Fatal("comparator client", "err", err)
	}

	bus := core.NewBus(nil)
	registry := core.NewAuctionRegistry(bus)
	engine := core.NewAuctionEngine(core.EngineConfig{
		Registry: registry,
		Default:  comparator,
		Manager:  cfg.manager,
		Relayer:  cfg.relayer,
		Bus:      bus,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := gateway.NewHub(bus, logger.With("component", "hub"))
	go hub.Run(ctx)

	relayer := relay.NewRelayer(relay.Config{
		Engine:   engine,
		Registry: registry,
		Interval: cfg.relayInterval,
		Logger:   logger.With("component", "relay"),
	})
	go relayer.Run(ctx)

	server := gateway.NewServer(gateway.ServerConfig{
		Engine:   engine,
		Registry: registry,
		Hub:      hub,
		Metrics:  gateway.NewMetrics(bus.Dropped),
		Logger:   logger.With("component", "gateway"),
	})

	httpServer := &http.Server{
		Addr:         cfg.listenAddr,
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", cfg.listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("gateway server", "err", err)
	}
}
