package main

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const versionProbeTimeout = 10 * time.Second

// GithubRelease is the part of the GitHub release API response the installer uses.
type GithubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []GithubAsset `json:"assets"`
}

type GithubAsset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// VersionManager installs and inspects the frpc binary.
type VersionManager struct {
	dir        string
	releaseAPI string
	client     *http.Client
	goos       string
	goarch     string

	// installs are serialized; a half-written binary must never be renamed into place
	mu sync.Mutex
}

func NewVersionManager(cfg *Config) (*VersionManager, error) {
	if err := os.MkdirAll(cfg.frpcDir(), 0755); err != nil {
		return nil, err
	}
	return &VersionManager{
		dir:        cfg.frpcDir(),
		releaseAPI: cfg.Frpc.ReleaseAPI,
		client:     &http.Client{Timeout: cfg.Frpc.DownloadTimeout.Duration},
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}, nil
}

func (vm *VersionManager) binaryName() string {
	if vm.goos == "windows" {
		return "frpc.exe"
	}
	return "frpc"
}

// BinaryPath is where the installed frpc lives.
func (vm *VersionManager) BinaryPath() string {
	return filepath.Join(vm.dir, vm.binaryName())
}

// IsInstalled reports whether the frpc binary exists.
func (vm *VersionManager) IsInstalled() bool {
	info, err := os.Stat(vm.BinaryPath())
	return err == nil && info.Mode().IsRegular()
}

// CurrentVersion runs `frpc --version`.
func (vm *VersionManager) CurrentVersion(ctx context.Context) (string, error) {
	if !vm.IsInstalled() {
		return "", ErrFrpcNotInstalled
	}
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, vm.BinaryPath(), "--version").Output()
	if err != nil {
		return "", fmt.Errorf("get frpc version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// LatestRelease queries the release API.
func (vm *VersionManager) LatestRelease(ctx context.Context) (*GithubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vm.releaseAPI, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "frpc-panel")

	resp, err := vm.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release API returned status %d", resp.StatusCode)
	}

	var release GithubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parse release: %w", err)
	}
	if release.TagName == "" {
		return nil, errors.New("release has no tag name")
	}
	return &release, nil
}

// AssetName is the archive name frp publishes for version on this platform.
func (vm *VersionManager) AssetName(version string) string {
	ver := strings.TrimPrefix(version, "v")
	if vm.goos == "windows" {
		return fmt.Sprintf("frp_%s_%s_%s.zip", ver, vm.goos, vm.goarch)
	}
	return fmt.Sprintf("frp_%s_%s_%s.tar.gz", ver, vm.goos, vm.goarch)
}

// InstallLatest downloads the latest release for this platform and installs frpc
// from it. It returns the installed version.
func (vm *VersionManager) InstallLatest(ctx context.Context) (string, error) {
	release, err := vm.LatestRelease(ctx)
	if err != nil {
		return "", err
	}

	want := vm.AssetName(release.TagName)
	var asset *GithubAsset
	for i := range release.Assets {
		if release.Assets[i].Name == want {
			asset = &release.Assets[i]
			break
		}
	}
	if asset == nil {
		return "", fmt.Errorf("%w: %s/%s (looking for %s)", ErrNoMatchingAsset, vm.goos, vm.goarch, want)
	}

	slog.Info("downloading frpc", "release", release.TagName, "url", asset.BrowserDownloadURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "frpc-panel")
	resp, err := vm.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", asset.Name, resp.StatusCode)
	}

	version, err := vm.InstallFromArchive(ctx, resp.Body)
	if err != nil {
		return "", err
	}
	slog.Info("frpc installed", "release", release.TagName, "version", version)
	return version, nil
}

// InstallFromArchive installs frpc from a .zip or .tar.gz release archive read
// from r and returns the installed version.
func (vm *VersionManager) InstallFromArchive(ctx context.Context, r io.Reader) (string, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	tmp, err := os.CreateTemp(vm.dir, "archive-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("save archive: %w", err)
	}

	kind, err := sniffArchive(tmp)
	if err != nil {
		return "", err
	}
	switch kind {
	case "zip":
		err = vm.extractFromZip(tmp)
	case "tar.gz":
		err = vm.extractFromTarGz(tmp)
	}
	if err != nil {
		return "", err
	}

	version, err := vm.CurrentVersion(ctx)
	if err != nil {
		// The binary is in place; it may just not run on this host.
		slog.Warn("installed frpc does not report a version", "error", err)
		return "", nil
	}
	return version, nil
}

func sniffArchive(f *os.File) (string, error) {
	magic := make([]byte, 4)
	n, err := f.ReadAt(magic, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	magic = magic[:n]
	switch {
	case bytes.HasPrefix(magic, []byte("PK\x03\x04")):
		return "zip", nil
	case bytes.HasPrefix(magic, []byte{0x1f, 0x8b}):
		return "tar.gz", nil
	}
	return "", ErrUnsupportedArchive
}

func (vm *VersionManager) extractFromZip(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	for _, zf := range zr.File {
		if path.Base(zf.Name) != vm.binaryName() || !zf.Mode().IsRegular() {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		return vm.writeBinary(rc)
	}
	return ErrBinaryNotInArchive
}

func (vm *VersionManager) extractFromTarGz(f *os.File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	gzr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return ErrBinaryNotInArchive
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		// Archives also carry frps; only the client binary is wanted.
		if path.Base(header.Name) == vm.binaryName() && header.Typeflag == tar.TypeReg {
			return vm.writeBinary(tr)
		}
	}
}

// writeBinary writes r next to the final path and renames it into place.
func (vm *VersionManager) writeBinary(r io.Reader) error {
	out, err := os.CreateTemp(vm.dir, vm.binaryName()+".new-*")
	if err != nil {
		return err
	}
	defer os.Remove(out.Name())

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write frpc: %w", err)
	}
	if err := out.Chmod(0755); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(out.Name(), vm.BinaryPath()); err != nil {
		return fmt.Errorf("install frpc: %w", err)
	}
	slog.Info("frpc binary written", "path", vm.BinaryPath())
	return nil
}
