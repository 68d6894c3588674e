//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	log.SetPrefix("[e2e] ")
	log.SetFlags(log.Ltime)

	bin := resolvePrctlBinaryPath()
	if _, err := os.Stat(bin); err != nil {
		log.Fatalf("prctl binary not found at %s\nBuild it first with: go build -o bin/prctl ./cmd/cli", bin)
	}

	var cleanup func()
	if os.Getenv("E2E_SKIP_SETUP") == "true" {
		log.Printf("E2E_SKIP_SETUP=true, using an already running registry")
		registryURL = os.Getenv("PRCTL_API_BASE_URL")
		if registryURL == "" {
			log.Fatal("PRCTL_API_BASE_URL must be set when E2E_SKIP_SETUP=true")
		}
	} else {
		cleanup = startRegistry(bin)
	}

	log.Printf("Configuration:")
	log.Printf("  PRCTL_API_BASE_URL: %s", registryURL)

	code := m.Run()

	if cleanup != nil {
		cleanup()
	}
	os.Exit(code)
}

func resolvePrctlBinaryPath() string {
	bin := os.Getenv("PRCTL_BINARY")
	if bin == "" {
		bin = filepath.Join("..", "bin", "prctl")
	}
	abs, err := filepath.Abs(bin)
	if err != nil {
		log.Fatalf("Failed to resolve prctl binary path %q: %v", bin, err)
	}
	return abs
}

// startRegistry runs "prctl serve" on a free port with a throwaway file
// store and waits for it to report healthy. Returns a cleanup function.
func startRegistry(bin string) func() {
	dataDir, err := os.MkdirTemp("", "prctl-e2e-")
	if err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}
	addr := freeAddress()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, bin, "serve",
		"--addr", addr,
		"--storage", "file",
		"--prompts-dir", dataDir,
	)
	cmd.Env = append(os.Environ(),
		"PROMPTREGISTRY_DISABLE_METRICS=true",
		"PROMPTREGISTRY_LOG_LEVEL=warn",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		cancel()
		log.Fatalf("Failed to start prctl serve: %v", err)
	}

	registryURL = fmt.Sprintf("http://%s/v0", addr)
	waitForHealthStartup(registryURL+"/health", 30*time.Second)

	return func() {
		log.Printf("Stopping registry...")
		cancel()
		_ = cmd.Wait()
		_ = os.RemoveAll(dataDir)
	}
}

func freeAddress() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("Failed to find a free port: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

func waitForHealthStartup(url string, timeout time.Duration) {
	log.Printf("Waiting for registry at %s...", url)
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				log.Printf("Registry is healthy")
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatalf("Registry did not become healthy within %s", timeout)
}
