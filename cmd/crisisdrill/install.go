package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rendis/crisisdrill/internal/diagram"
)

const mermaidASCIIVersion = "1.1.0"

// Pinned SHA-256 digests of the mermaid-ascii v1.1.0 release archives.
var mermaidASCIIChecksums = map[string]string{
	"mermaid-ascii_Darwin_arm64.tar.gz":  "068d2ff869d4921655cab471500fffd8c3ed28155b100518ed3cf3835d53d3d0",
	"mermaid-ascii_Darwin_x86_64.tar.gz": "0cd4c9c01a03284fe866f39a1ce1aaee1e6a2fbd91deedc4ec254cb87622eec8",
	"mermaid-ascii_Linux_arm64.tar.gz":   "3b7d0a95141bfbca838e445ea802ffb7fba8873b3c4af498482c84f83526f2db",
	"mermaid-ascii_Linux_x86_64.tar.gz":  "838ea93d561b3bc83aa15531c6ed7d2d261a8edc521d5484f7e91fe831cc4c65",
}

var errChecksumMismatch = errors.New("checksum mismatch")

// runInstall writes settings.json and fetches the mermaid-ascii renderer used
// by drill.diagram. A failed download is reported but not fatal: ASCII
// diagrams fall back to the built-in renderer.
func runInstall(args []string) error {
	dir := crisisdrillDir()
	defaults := defaultConfig(dir)

	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	dbPath := fs.String("db-path", defaults.DBPath, "database path")
	logLevel := fs.String("log-level", defaults.LogLevel, "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", defaults.LogFormat, "log format: text or json")
	strategy := fs.String("scoring", defaults.ScoringStrategy, "default scoring strategy")
	schedule := fs.String("reaper-schedule", defaults.ReaperSchedule, "cron schedule of the idle session sweep")
	ttl := fs.String("session-ttl", defaults.SessionTTL, "idle time after which a session is abandoned")
	skipTools := fs.Bool("skip-tools", false, "do not download mermaid-ascii")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := Config{
		DBPath:          *dbPath,
		LogLevel:        *logLevel,
		LogFormat:       *logFormat,
		ScoringStrategy: *strategy,
		ReaperSchedule:  *schedule,
		SessionTTL:      *ttl,
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	path, err := writeSettings(dir, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Config written to %s\n", path)

	if *skipTools {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	dest, err := installMermaidASCII(ctx, &http.Client{Timeout: 60 * time.Second}, binDir(dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v. ASCII diagrams will use the built-in renderer\n", err)
		return nil
	}
	fmt.Printf("mermaid-ascii available at %s\n", dest)
	return nil
}

func writeSettings(dir string, cfg Config) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	path := settingsPath(dir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// installMermaidASCII downloads, verifies and unpacks the mermaid-ascii
// binary into binDir. An existing binary is left alone.
func installMermaidASCII(ctx context.Context, client httpDoer, binDir string) (string, error) {
	dest := filepath.Join(binDir, diagram.MermaidASCIIBinary)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	asset, err := mermaidASCIIAssetName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", binDir, err)
	}

	url := fmt.Sprintf("https://github.com/AlexanderGrooff/mermaid-ascii/releases/download/%s/%s",
		mermaidASCIIVersion, asset)
	tmp, err := downloadToTempFile(ctx, client, url, binDir)
	if err != nil {
		return "", fmt.Errorf("download mermaid-ascii: %w", err)
	}
	defer os.Remove(tmp)

	if err := verifyChecksum(tmp, mermaidASCIIChecksums[asset]); err != nil {
		return "", fmt.Errorf("%s: %w", asset, err)
	}

	f, err := os.Open(tmp)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := extractTarGz(f, binDir, diagram.MermaidASCIIBinary); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("extract mermaid-ascii: %w", err)
	}
	return dest, nil
}

// verifyChecksum compares the file digest with want. An empty want means the
// asset has no pinned digest and fails closed.
func verifyChecksum(path, want string) error {
	if want == "" {
		return fmt.Errorf("%w: no pinned digest", errChecksumMismatch)
	}
	got, err := sha256File(path)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: expected %s, got %s", errChecksumMismatch, want, got)
	}
	return nil
}

// mermaidASCIIAssetName returns the release asset name for a platform.
func mermaidASCIIAssetName(goos, goarch string) (string, error) {
	var osName string
	switch goos {
	case "darwin":
		osName = "Darwin"
	case "linux":
		osName = "Linux"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported OS %q", goos)
	}

	var archName string
	switch goarch {
	case "amd64":
		archName = "x86_64"
	case "arm64":
		archName = "arm64"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported architecture %q", goarch)
	}
	return fmt.Sprintf("mermaid-ascii_%s_%s.tar.gz", osName, archName), nil
}

// extractTarGz writes the regular file named target from a tar.gz stream
// into destDir. Entries match by base name.
func extractTarGz(r io.Reader, destDir, target string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("file %q not found in archive", target)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		if filepath.Base(hdr.Name) != target || hdr.Typeflag != tar.TypeReg {
			continue
		}

		dest := filepath.Join(destDir, target)
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("create %s: %w", dest, err)
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // bounded by tar header size
			f.Close()
			return fmt.Errorf("write %s: %w", dest, err)
		}
		return f.Close()
	}
}
