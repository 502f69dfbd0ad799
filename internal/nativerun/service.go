package nativerun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ServiceManager controls the kiosk display unit. Implementations must
// tolerate repeated Restart calls (cleanup runs it on every exit path).
type ServiceManager interface {
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	IsActive(ctx context.Context, unit string) (bool, error)
}

const overrideName = "99-native-handoff.conf"

// override keeps systemd from resurrecting the display while the
// emulator owns the screen. The unit file itself is never edited.
const overrideBody = "[Service]\nRestart=no\n"

// SystemdManager drives systemctl. Each call is one command with its
// own timeout.
type SystemdManager struct {
	DropinDir string
	Timeout   time.Duration
}

func NewSystemdManager(dropinDir string, timeout time.Duration) *SystemdManager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SystemdManager{DropinDir: dropinDir, Timeout: timeout}
}

func (m *SystemdManager) overrideDir(unit string) string {
	return filepath.Join(m.DropinDir, unit+".d")
}

// Stop writes the drop-in override, reloads units and stops the
// display service.
func (m *SystemdManager) Stop(ctx context.Context, unit string) error {
	dir := m.overrideDir(unit)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create drop-in dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, overrideName), []byte(overrideBody)); err != nil {
		return fmt.Errorf("write drop-in: %w", err)
	}
	if err := m.run(ctx, "daemon-reload"); err != nil {
		return err
	}
	return m.run(ctx, "stop", unit)
}

// Restart removes the override, reloads units and restarts the display
// service. All three steps are attempted; the first error is returned.
func (m *SystemdManager) Restart(ctx context.Context, unit string) error {
	var firstErr error
	if err := os.RemoveAll(m.overrideDir(unit)); err != nil {
		firstErr = fmt.Errorf("remove drop-in dir: %w", err)
	}
	if err := m.run(ctx, "daemon-reload"); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.run(ctx, "restart", unit); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// IsActive reports whether the unit is currently active. A non-zero
// systemctl exit means inactive, not an error.
func (m *SystemdManager) IsActive(ctx context.Context, unit string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	err := exec.CommandContext(ctx, "systemctl", "is-active", "--quiet", unit).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

func (m *SystemdManager) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, firstLine(out))
	}
	return nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
