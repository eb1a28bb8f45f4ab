package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	maxTailBytes       = 512 << 10
	followPollInterval = 500 * time.Millisecond
)

type frpcProcess struct {
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}
	exitErr   error
}

func (p *frpcProcess) running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ProcessManager runs one frpc child per server profile.
type ProcessManager struct {
	binary      func() string
	confDir     string
	logsDir     string
	stopTimeout time.Duration

	mu    sync.Mutex
	procs map[string]*frpcProcess
	// gens counts log truncations per server so followers can rewind.
	gens map[string]uint64
}

func NewProcessManager(cfg *Config, binary func() string) (*ProcessManager, error) {
	for _, dir := range []string{cfg.confDir(), cfg.logsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return &ProcessManager{
		binary:      binary,
		confDir:     cfg.confDir(),
		logsDir:     cfg.logsDir(),
		stopTimeout: cfg.Frpc.StopTimeout.Duration,
		procs:       make(map[string]*frpcProcess),
		gens:        make(map[string]uint64),
	}, nil
}

func (pm *ProcessManager) confPath(serverID string) string {
	return filepath.Join(pm.confDir, serverID+".toml")
}

func (pm *ProcessManager) logPath(serverID string) string {
	return filepath.Join(pm.logsDir, serverID+".log")
}

// Start writes config for serverID and launches frpc with it.
func (pm *ProcessManager) Start(serverID string, config []byte) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if p, ok := pm.procs[serverID]; ok && p.running() {
		return ErrAlreadyRunning
	}

	bin := pm.binary()
	if _, err := os.Stat(bin); err != nil {
		return ErrFrpcNotInstalled
	}

	confFile := pm.confPath(serverID)
	// The config holds the frps auth token.
	if err := os.WriteFile(confFile, config, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	lf, err := os.OpenFile(pm.logPath(serverID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	pm.gens[serverID]++

	cmd := exec.Command(bin, "-c", confFile)
	cmd.Stdout = lf
	cmd.Stderr = lf
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		lf.Close()
		return fmt.Errorf("start frpc: %w", err)
	}

	p := &frpcProcess{cmd: cmd, startedAt: time.Now(), done: make(chan struct{})}
	pm.procs[serverID] = p

	go func() {
		p.exitErr = cmd.Wait()
		lf.Close()
		close(p.done)
		slog.Info("frpc exited", "server", serverID, "pid", cmd.Process.Pid,
			"uptime", time.Since(p.startedAt).Round(time.Second), "error", p.exitErr)
	}()

	slog.Info("frpc started", "server", serverID, "pid", cmd.Process.Pid)
	return nil
}

// Stop terminates the frpc process of serverID, escalating to a kill when it
// does not exit within the stop timeout.
func (pm *ProcessManager) Stop(serverID string) error {
	pm.mu.Lock()
	p, ok := pm.procs[serverID]
	pm.mu.Unlock()
	if !ok || !p.running() {
		return ErrNotRunning
	}

	if err := terminateProcess(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop frpc: %w", err)
	}

	select {
	case <-p.done:
	case <-time.After(pm.stopTimeout):
		slog.Warn("frpc ignored terminate, killing", "server", serverID, "pid", p.cmd.Process.Pid)
		if err := killProcess(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill frpc: %w", err)
		}
		<-p.done
	}

	slog.Info("frpc stopped", "server", serverID)
	return nil
}

// Restart stops serverID if it is running and starts it again with config.
func (pm *ProcessManager) Restart(serverID string, config []byte) error {
	if err := pm.Stop(serverID); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return pm.Start(serverID, config)
}

// Status reports whether frpc is running for serverID and its pid.
func (pm *ProcessManager) Status(serverID string) (bool, int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.procs[serverID]
	if !ok || !p.running() {
		return false, 0
	}
	return true, p.cmd.Process.Pid
}

// Forget drops the bookkeeping and files of a deleted server. It stops frpc first.
func (pm *ProcessManager) Forget(serverID string) {
	if err := pm.Stop(serverID); err != nil && !errors.Is(err, ErrNotRunning) {
		slog.Warn("stop before delete failed", "server", serverID, "error", err)
	}
	pm.mu.Lock()
	delete(pm.procs, serverID)
	delete(pm.gens, serverID)
	pm.mu.Unlock()

	for _, path := range []string{pm.confPath(serverID), pm.logPath(serverID)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove server file", "path", path, "error", err)
		}
	}
}

// StopAll stops every running frpc; used on shutdown.
func (pm *ProcessManager) StopAll() {
	pm.mu.Lock()
	ids := make([]string, 0, len(pm.procs))
	for id, p := range pm.procs {
		if p.running() {
			ids = append(ids, id)
		}
	}
	pm.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := pm.Stop(id); err != nil && !errors.Is(err, ErrNotRunning) {
				slog.Error("stop frpc on shutdown", "server", id, "error", err)
			}
		}(id)
	}
	wg.Wait()
}

// Logs returns the last n lines of the frpc log of serverID.
func (pm *ProcessManager) Logs(serverID string, n int) (string, error) {
	return tailFile(pm.logPath(serverID), n)
}

func tailFile(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	offset := info.Size() - maxTailBytes
	if offset < 0 {
		offset = 0
	}
	b, err := io.ReadAll(io.NewSectionReader(f, offset, info.Size()-offset))
	if err != nil {
		return "", err
	}

	content := string(b)
	if offset > 0 {
		// Drop the partial first line.
		if i := strings.IndexByte(content, '\n'); i >= 0 {
			content = content[i+1:]
		}
	}
	if n > 0 {
		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		if len(lines) > n {
			lines = lines[len(lines)-n:]
		}
		content = strings.Join(lines, "\n")
	}
	return content, nil
}

func (pm *ProcessManager) generation(serverID string) uint64 {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.gens[serverID]
}

// Follow streams bytes appended to the log of serverID from its current end until
// ctx is done. A log rewritten by a new run is followed from the beginning.
func (pm *ProcessManager) Follow(ctx context.Context, serverID string) <-chan string {
	out := make(chan string, 16)
	path := pm.logPath(serverID)

	go func() {
		defer close(out)

		gen := pm.generation(serverID)
		var offset int64
		if info, err := os.Stat(path); err == nil {
			offset = info.Size()
		}

		ticker := time.NewTicker(followPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if g := pm.generation(serverID); g != gen {
				gen, offset = g, 0
			}
			chunk, next, err := readFrom(path, offset)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					slog.Debug("follow log", "server", serverID, "error", err)
				}
				continue
			}
			offset = next
			if chunk == "" {
				continue
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func readFrom(path string, offset int64) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", offset, err
	}
	size := info.Size()
	if size < offset {
		offset = 0
	}
	if size == offset {
		return "", offset, nil
	}
	if size-offset > maxTailBytes {
		offset = size - maxTailBytes
	}
	b, err := io.ReadAll(io.NewSectionReader(f, offset, size-offset))
	if err != nil {
		return "", offset, err
	}
	return string(b), offset + int64(len(b)), nil
}
