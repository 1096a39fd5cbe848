package main

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type serverConfig struct {
	// listenAddr is the TCP listen address; ignored when vsockPort is set.
	listenAddr string

	// vsockPort, when non-zero, switches the listener to vsock for sealed
	// deployments.
	vsockPort int

	maxWorkers  int
	evalTimeout time.Duration

	coprocessorURL string
	signingKeyPath string
}

func loadConfig() (serverConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	cfg := serverConfig{
		listenAddr:     envOr("COMPARATORD_LISTEN", ":5000"),
		signingKeyPath: os.Getenv("COMPARATORD_SIGNING_KEY"),
	}

	var err error
	if cfg.vsockPort, err = envIntOr("COMPARATORD_VSOCK_PORT", 0); err != nil {
		return serverConfig{}, err
	}
	if cfg.maxWorkers, err = envIntOr("COMPARATORD_MAX_WORKERS", 8); err != nil {
		return serverConfig{}, err
	}
	if cfg.maxWorkers <= 0 {
		return serverConfig{}, fmt.Errorf("COMPARATORD_MAX_WORKERS must be positive, got %d", cfg.maxWorkers)
	}

	timeoutSec, err := envIntOr("COMPARATORD_EVAL_TIMEOUT_SECONDS", 60)
	if err != nil {
		return serverConfig{}, err
	}
	cfg.evalTimeout = time.Duration(timeoutSec) * time.Second

	cfg.coprocessorURL = os.Getenv("COMPARATORD_COPROCESSOR_URL")
	if cfg.coprocessorURL == "" {
		return serverConfig{}, fmt.Errorf("required environment variable COMPARATORD_COPROCESSOR_URL is not set")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (must be an integer)", key, v)
	}
	return n, nil
}

// loadSigningKey reads a PEM-encoded EC private key used to sign compare
// responses.
func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signing key %s: no PEM block found", path)
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse EC private key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key %s is not an ECDSA key", path)
		}
		return ecKey, nil
	default:
		return nil, fmt.Errorf("signing key %s: unsupported PEM block %q", path, block.Type)
	}
}
