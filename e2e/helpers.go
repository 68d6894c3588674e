//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// registryURL is set during TestMain setup and used by all tests that need the registry.
var registryURL string

// prctlBinary returns the absolute path to the pre-built prctl binary.
// Checks PRCTL_BINARY env var first, then falls back to ../bin/prctl.
// The path is resolved to an absolute path because exec.Command resolves
// relative paths relative to cmd.Dir, not the process working directory.
func prctlBinary(t *testing.T) string {
	t.Helper()
	bin := os.Getenv("PRCTL_BINARY")
	if bin == "" {
		bin = filepath.Join("..", "bin", "prctl")
	}
	abs, err := filepath.Abs(bin)
	if err != nil {
		t.Fatalf("Failed to resolve absolute path for prctl binary %q: %v", bin, err)
	}
	return abs
}

// PrctlResult holds the output from running prctl.
type PrctlResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// RunPrctl executes prctl with the given args in the given working directory.
// It logs the full command for transparency.
func RunPrctl(t *testing.T, workDir string, args ...string) PrctlResult {
	t.Helper()
	bin := prctlBinary(t)
	t.Logf("Running: %s %s (in %s)", bin, strings.Join(args, " "), workDir)

	cmd := exec.Command(bin, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.Env = append(os.Environ(), "PRCTL_API_BASE_URL="+registryURL)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := PrctlResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Err:      err,
	}

	t.Logf("Exit code: %d", result.ExitCode)
	if result.Stdout != "" {
		t.Logf("Stdout:\n%s", result.Stdout)
	}
	if result.Stderr != "" {
		t.Logf("Stderr:\n%s", result.Stderr)
	}

	return result
}

// RequireSuccess asserts the command succeeded (exit code 0).
func RequireSuccess(t *testing.T, result PrctlResult) {
	t.Helper()
	if result.ExitCode != 0 {
		t.Fatalf("Expected exit code 0 but got %d.\nStdout: %s\nStderr: %s",
			result.ExitCode, result.Stdout, result.Stderr)
	}
}

// RequireFailure asserts the command failed (non-zero exit code).
func RequireFailure(t *testing.T, result PrctlResult) {
	t.Helper()
	if result.ExitCode == 0 {
		t.Fatalf("Expected non-zero exit code but got 0.\nStdout: %s\nStderr: %s",
			result.Stdout, result.Stderr)
	}
}

// RequireOutputContains asserts stdout or stderr contains the given substring.
func RequireOutputContains(t *testing.T, result PrctlResult, substr string) {
	t.Helper()
	combined := result.Stdout + result.Stderr
	if !strings.Contains(combined, substr) {
		t.Fatalf("Expected output to contain %q but got:\nStdout: %s\nStderr: %s",
			substr, result.Stdout, result.Stderr)
	}
}

// UniqueNameWithPrefix returns a prompt name that will not collide with
// earlier runs against the same registry.
func UniqueNameWithPrefix(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// WriteFile writes content into dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// DecodeJSON unmarshals the stdout of a command run with -o json.
func DecodeJSON[T any](t *testing.T, result PrctlResult) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(result.Stdout), &v); err != nil {
		t.Fatalf("Failed to decode JSON output: %v\nStdout: %s", err, result.Stdout)
	}
	return v
}

// RegistryGet performs a GET against the registry API.
func RegistryGet(t *testing.T, path string) *http.Response {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(registryURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
