// Package nativerun drives the native emulator lifecycle: it hands the
// display from the kiosk service to retroarch under a minimal Wayland
// compositor and back, through a strict idle -> launching -> running ->
// stopping -> idle state machine.
package nativerun

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"retrocade/internal/config"
)

type State string

const (
	StateIdle      State = "idle"
	StateLaunching State = "launching"
	StateRunning   State = "running"
	StateStopping  State = "stopping"
)

// Code returns the numeric form used by the state gauge.
func (s State) Code() int {
	switch s {
	case StateLaunching:
		return 1
	case StateRunning:
		return 2
	case StateStopping:
		return 3
	default:
		return 0
	}
}

// ExitResult is delivered exactly once per launch on the channel
// returned by Launch.
type ExitResult struct {
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

// Status is a point-in-time probe. Supported and CoreAvailability are
// recomputed on every call; the host can change between calls.
type Status struct {
	State            State           `json:"state"`
	Core             string          `json:"core,omitempty"`
	Rom              string          `json:"rom,omitempty"`
	ProcessID        int             `json:"processId,omitempty"`
	Supported        bool            `json:"supported"`
	CoreAvailability map[string]bool `json:"coreAvailability"`
}

// Orchestrator owns the native process record. All transitions happen
// under its mutex; the mutex is never held across extraction, service
// commands or the spawn itself.
type Orchestrator struct {
	cfg config.NativeConfig
	svc ServiceManager

	mu      sync.Mutex
	state   State
	core    string
	rom     string
	cmd     *exec.Cmd
	scratch string
	exitCh  chan ExitResult
}

func New(cfg config.NativeConfig, svc ServiceManager) *Orchestrator {
	return &Orchestrator{cfg: cfg, svc: svc, state: StateIdle}
}

// Launch validates and starts a native session. On success the
// returned channel delivers the process exit exactly once. Validation
// failures return synchronously with a nil channel and the orchestrator
// back in idle.
func (o *Orchestrator) Launch(ctx context.Context, systemID, contentPath string, options map[string]string) (<-chan ExitResult, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		state := o.state
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: launch while %s", ErrInvalidState, state)
	}
	sys, ok := SystemByID(systemID)
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w for system %q", ErrCoreNotFound, systemID)
	}
	corePath := filepath.Join(o.cfg.CoresDir, sys.Core)
	if _, err := os.Stat(corePath); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCoreNotFound, corePath)
	}
	if _, err := os.Stat(contentPath); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrContentNotFound, contentPath)
	}
	o.state = StateLaunching
	o.core = sys.Core
	o.rom = contentPath
	o.mu.Unlock()

	log.Info().Str("system", sys.ID).Str("rom", contentPath).Msg("native_launch_start")

	runPath := contentPath
	if sys.NeedsUncompressed && isArchive(contentPath) {
		picked, err := o.extractContent(contentPath, sys)
		if err != nil {
			o.cleanup(nil, false)
			return nil, err
		}
		runPath = picked
	}

	o.writeOptions(sys, options)

	if err := o.svc.Stop(ctx, o.cfg.KioskUnit); err != nil {
		o.cleanup(nil, true)
		return nil, fmt.Errorf("%w: %v", ErrKioskStopFailed, err)
	}
	if o.cfg.SettleMS > 0 {
		time.Sleep(time.Duration(o.cfg.SettleMS) * time.Millisecond)
	}

	cmd := o.buildCommand(corePath, runPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		o.cleanup(nil, true)
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		o.cleanup(nil, true)
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		o.cleanup(nil, true)
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	go logStream("stdout", stdout)
	go logStream("stderr", stderr)

	exitCh := make(chan ExitResult, 1)
	o.mu.Lock()
	o.cmd = cmd
	o.exitCh = exitCh
	o.state = StateRunning
	o.mu.Unlock()
	log.Info().Int("pid", cmd.Process.Pid).Str("core", sys.Core).Msg("native_running")

	go o.reap(cmd)
	return exitCh, nil
}

// Quit requests termination of a running session. Idle is reached only
// through the exit path; quit itself is advisory.
func (o *Orchestrator) Quit(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateRunning {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: quit while %s", ErrInvalidState, state)
	}
	o.state = StateStopping
	cmd := o.cmd
	o.mu.Unlock()

	log.Info().Msg("native_quit")
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err == nil {
			return nil
		}
	}
	// handle went stale; kill by command pattern
	out, err := exec.CommandContext(ctx, "pkill", "-f", o.cfg.EmulatorBin).CombinedOutput()
	if err != nil {
		log.Warn().Err(err).Str("out", firstLine(out)).Msg("native_pkill_failed")
	}
	return nil
}

// Status snapshots the record and re-probes host support.
func (o *Orchestrator) Status(ctx context.Context) Status {
	o.mu.Lock()
	st := Status{State: o.state, Core: o.core, Rom: o.rom}
	if o.cmd != nil && o.cmd.Process != nil {
		st.ProcessID = o.cmd.Process.Pid
	}
	o.mu.Unlock()

	emulatorOK := binaryAvailable(o.cfg.EmulatorBin)
	compositorOK := o.cfg.CompositorBin == "" || binaryAvailable(o.cfg.CompositorBin)
	serviceOK := true
	if _, err := o.svc.IsActive(ctx, o.cfg.KioskUnit); err != nil {
		serviceOK = false
	}
	st.Supported = emulatorOK && compositorOK && serviceOK

	st.CoreAvailability = make(map[string]bool, len(systems))
	for _, sys := range Systems() {
		_, err := os.Stat(filepath.Join(o.cfg.CoresDir, sys.Core))
		st.CoreAvailability[sys.ID] = err == nil
	}
	return st
}

func (o *Orchestrator) extractContent(archivePath string, sys System) (string, error) {
	if err := os.MkdirAll(o.cfg.ScratchDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	scratch, err := os.MkdirTemp(o.cfg.ScratchDir, "content-")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	o.mu.Lock()
	o.scratch = scratch
	o.mu.Unlock()

	if err := extractArchive(archivePath, scratch); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return pickContent(scratch, sys.Extensions)
}

// writeOptions merges caller overrides over system defaults over the
// persisted file and writes the result back. Failures are logged, not
// fatal; options are tuning.
func (o *Orchestrator) writeOptions(sys System, overrides map[string]string) {
	persisted, err := ReadOptions(o.cfg.OptionsPath)
	if err != nil {
		log.Warn().Err(err).Str("path", o.cfg.OptionsPath).Msg("core_options_read_failed")
		persisted = map[string]string{}
	}
	merged := MergeOptions(persisted, sys.DefaultOptions, overrides)
	if len(merged) == 0 {
		return
	}
	if err := WriteOptions(o.cfg.OptionsPath, merged); err != nil {
		log.Warn().Err(err).Str("path", o.cfg.OptionsPath).Msg("core_options_write_failed")
	}
}

func (o *Orchestrator) buildCommand(corePath, contentPath string) *exec.Cmd {
	if o.cfg.CompositorBin != "" {
		return exec.Command(o.cfg.CompositorBin, "--", o.cfg.EmulatorBin, "-L", corePath, contentPath)
	}
	return exec.Command(o.cfg.EmulatorBin, "-L", corePath, contentPath)
}

func (o *Orchestrator) reap(cmd *exec.Cmd) {
	res := exitResult(cmd.Wait())
	log.Info().Int("code", res.Code).Str("signal", res.Signal).Msg("native_exit")
	o.cleanup(&res, true)
}

// cleanup is the single path back to idle: clear the record, drop the
// scratch dir, restore the display service when it was touched, then
// deliver the exit result at most once.
func (o *Orchestrator) cleanup(result *ExitResult, restoreService bool) {
	o.mu.Lock()
	o.core = ""
	o.rom = ""
	o.cmd = nil
	scratch := o.scratch
	o.scratch = ""
	exitCh := o.exitCh
	o.exitCh = nil
	o.state = StateIdle
	o.mu.Unlock()

	if scratch != "" {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn().Err(err).Str("dir", scratch).Msg("native_scratch_remove_failed")
		}
	}
	if restoreService {
		if err := o.svc.Restart(context.Background(), o.cfg.KioskUnit); err != nil {
			log.Warn().Err(err).Msg("kiosk_restore_failed")
		}
	}
	if exitCh != nil && result != nil {
		exitCh <- *result
	}
	log.Info().Msg("native_idle")
}

func exitResult(waitErr error) ExitResult {
	if waitErr == nil {
		return ExitResult{Code: 0}
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitResult{Code: -1, Signal: unix.SignalName(ws.Signal())}
		}
		return ExitResult{Code: exitErr.ExitCode()}
	}
	return ExitResult{Code: -1}
}

func binaryAvailable(bin string) bool {
	if filepath.IsAbs(bin) {
		_, err := os.Stat(bin)
		return err == nil
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

func logStream(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.Debug().Str("stream", stream).Msg(sc.Text())
	}
}
