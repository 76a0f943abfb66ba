package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// containerStoragePath is where qdrant keeps its data inside the container.
const containerStoragePath = "/qdrant/storage"

type Config struct {
	Container    string
	Image        string
	StorageDir   string
	HTTPPort     int
	GRPCPort     int
	ReadyTimeout time.Duration
}

// runner executes an external command and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) (string, error)

// Manager drives a local qdrant container through the docker CLI.
type Manager struct {
	cfg     Config
	logger  *zap.Logger
	run     runner
	client  *http.Client
	baseURL string
	poll    time.Duration
}

func NewManager(cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		run:     runCommand,
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: fmt.Sprintf("http://localhost:%d", cfg.HTTPPort),
		poll:    time.Second,
	}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Start brings up the qdrant container with persistent storage. A qdrant
// already answering on the HTTP port is left alone.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.checkDocker(ctx); err != nil {
		return err
	}

	if m.reachable(ctx) {
		m.logger.Info("qdrant already running", zap.String("url", m.baseURL))
		return nil
	}

	storage, err := m.storagePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(storage, 0o755); err != nil {
		return fmt.Errorf("failed to create storage dir %s: %w", storage, err)
	}

	// A stale container would block the name; removal is best effort.
	m.run(ctx, "docker", "stop", m.cfg.Container)
	m.run(ctx, "docker", "rm", m.cfg.Container)

	out, err := m.run(ctx, "docker", "run", "-d",
		"--name", m.cfg.Container,
		"-p", fmt.Sprintf("%d:6333", m.cfg.HTTPPort),
		"-p", fmt.Sprintf("%d:6334", m.cfg.GRPCPort),
		"-v", storage+":"+containerStoragePath,
		m.cfg.Image,
	)
	if err != nil {
		return fmt.Errorf("failed to start container: %v: %s", err, out)
	}

	m.logger.Info("qdrant container started",
		zap.String("container", m.cfg.Container),
		zap.String("storage", storage),
	)
	return m.waitReady(ctx)
}

// Stop stops and removes the container. A container that is not running
// is not an error.
func (m *Manager) Stop(ctx context.Context) error {
	if err := m.checkDocker(ctx); err != nil {
		return err
	}

	if out, err := m.run(ctx, "docker", "stop", m.cfg.Container); err != nil {
		m.logger.Debug("docker stop", zap.String("output", out))
	}
	if out, err := m.run(ctx, "docker", "rm", m.cfg.Container); err != nil {
		m.logger.Debug("docker rm", zap.String("output", out))
	}

	m.logger.Info("qdrant container stopped", zap.String("container", m.cfg.Container))
	return nil
}

func (m *Manager) Restart(ctx context.Context) error {
	if err := m.Stop(ctx); err != nil {
		return err
	}
	return m.Start(ctx)
}

type Status struct {
	Container string
	Reachable bool
	Storage   string
}

// Status reports the docker container state and whether the HTTP
// endpoint answers.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.checkDocker(ctx); err != nil {
		return nil, err
	}

	storage, err := m.storagePath()
	if err != nil {
		return nil, err
	}

	state, err := m.run(ctx, "docker", "ps", "-a",
		"--filter", "name=^"+m.cfg.Container+"$",
		"--format", "{{.Status}}",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query container state: %v: %s", err, state)
	}
	if state == "" {
		state = "not created"
	}

	return &Status{
		Container: state,
		Reachable: m.reachable(ctx),
		Storage:   storage,
	}, nil
}

func (m *Manager) checkDocker(ctx context.Context) error {
	if _, err := m.run(ctx, "docker", "--version"); err != nil {
		return fmt.Errorf("docker not available: %w", err)
	}
	return nil
}

func (m *Manager) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (m *Manager) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(m.cfg.ReadyTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.poll):
		}
		if m.reachable(ctx) {
			m.logger.Info("qdrant ready", zap.String("url", m.baseURL))
			return nil
		}
	}
	return fmt.Errorf("qdrant not ready after %s", m.cfg.ReadyTimeout)
}

func (m *Manager) storagePath() (string, error) {
	abs, err := filepath.Abs(m.cfg.StorageDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve storage dir: %w", err)
	}
	return abs, nil
}
