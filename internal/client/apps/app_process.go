package apps

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/openmined/syftbox-client/internal/utils"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	ErrAlreadyRunning = errors.New("process already running")
	ErrNotRunning     = errors.New("process not running")
)

const termGracePeriod = 3 * time.Second

type AppProcessStatus string

const (
	StatusNew     AppProcessStatus = "new"
	StatusRunning AppProcessStatus = "running"
	StatusStopped AppProcessStatus = "stopped"
)

type procExit struct {
	code int
	err  error
}

// AppProcess runs a single app entrypoint as a subprocess and owns its
// whole process tree. It is reusable: after the process exits, Start may
// be called again to relaunch it with the same settings.
type AppProcess struct {
	ID string // scheduler id, not the PID

	procName   string
	procArgs   []string
	procEnvs   []string
	procDir    string
	procStdout io.Writer
	procStderr io.Writer

	cmd      *exec.Cmd
	procInfo *process.Process
	procMu   sync.RWMutex

	status   AppProcessStatus
	statusMu sync.RWMutex

	exited chan procExit
	done   chan struct{}
}

func NewAppProcess(name string, args ...string) *AppProcess {
	return &AppProcess{
		ID:       utils.TokenHex(3),
		procName: name,
		procArgs: args,
		status:   StatusNew,
	}
}

func (p *AppProcess) SetID(id string) *AppProcess {
	p.ID = id
	return p
}

func (p *AppProcess) SetWorkingDir(path string) *AppProcess {
	p.procDir = path
	return p
}

func (p *AppProcess) SetEnvs(envs map[string]string) *AppProcess {
	for key, value := range envs {
		p.procEnvs = append(p.procEnvs, fmt.Sprintf("%s=%s", key, value))
	}
	return p
}

func (p *AppProcess) SetStdout(w io.Writer) *AppProcess {
	p.procStdout = w
	return p
}

func (p *AppProcess) SetStderr(w io.Writer) *AppProcess {
	p.procStderr = w
	return p
}

// Start launches the subprocess and begins reaping it in the background.
func (p *AppProcess) Start() error {
	if p.GetStatus() == StatusRunning {
		return ErrAlreadyRunning
	}

	p.procMu.Lock()
	defer p.procMu.Unlock()

	cmd := exec.Command(p.procName, p.procArgs...)
	cmd.Dir = p.procDir
	cmd.SysProcAttr = getSysProcAttr()
	cmd.Env = append(os.Environ(), p.procEnvs...)
	cmd.Stdin = nil
	cmd.Stdout = p.procStdout
	cmd.Stderr = p.procStderr

	if err := cmd.Start(); err != nil {
		p.setStatus(StatusStopped)
		return fmt.Errorf("failed to start process: %w", err)
	}

	procInfo, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		_ = cmd.Process.Kill()
		p.setStatus(StatusStopped)
		return fmt.Errorf("failed to get process info: %w", err)
	}

	p.cmd = cmd
	p.procInfo = procInfo
	p.exited = make(chan procExit)
	p.done = make(chan struct{})
	p.setStatus(StatusRunning)

	go p.reap(cmd)

	return nil
}

// Stop tears down the process and all of its descendants.
func (p *AppProcess) Stop() error {
	if p.GetStatus() != StatusRunning {
		return ErrNotRunning
	}

	if err := p.killProcessTree(); err != nil {
		return fmt.Errorf("failed to kill process: %w", err)
	}

	p.setStatus(StatusStopped)

	p.procMu.Lock()
	p.cmd = nil
	p.procInfo = nil
	p.procMu.Unlock()

	return nil
}

// Wait blocks until the running process exits and returns its exit code.
func (p *AppProcess) Wait() (int, error) {
	if p.GetStatus() != StatusRunning {
		return -1, ErrNotRunning
	}

	exit := <-p.exited
	return exit.code, exit.err
}

func (p *AppProcess) Process() *process.Process {
	p.procMu.RLock()
	defer p.procMu.RUnlock()
	return p.procInfo
}

func (p *AppProcess) GetStatus() AppProcessStatus {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}

func (p *AppProcess) setStatus(s AppProcessStatus) {
	p.statusMu.Lock()
	p.status = s
	p.statusMu.Unlock()
}

// reap waits for the subprocess, records its exit and hands the result to
// any Wait caller.
func (p *AppProcess) reap(cmd *exec.Cmd) {
	err := cmd.Wait()
	code := cmd.ProcessState.ExitCode()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}

	p.setStatus(StatusStopped)

	p.exited <- procExit{code: code, err: err}

	close(p.done)
	close(p.exited)
}

// killProcessTree terminates the process and every descendant, deepest
// first. SIGTERM first, then SIGKILL for whatever survives the grace
// period.
func (p *AppProcess) killProcessTree() error {
	p.procMu.RLock()
	cmd := p.cmd
	procInfo := p.procInfo
	p.procMu.RUnlock()

	if cmd == nil || cmd.Process == nil || procInfo == nil {
		return fmt.Errorf("process is nil")
	}

	pid := cmd.Process.Pid

	targets := processTreeBottomUp(procInfo)
	if len(targets) == 0 {
		return nil
	}

	slog.Debug("kill process tree: SIGTERM", "id", p.ID, "pid", pid, "subprocs", len(targets))
	for _, target := range targets {
		if err := target.Terminate(); err != nil {
			slog.Debug("kill process tree: SIGTERM", "id", p.ID, "pid", target.Pid, "ppid", pid, "err", err)
		}
	}

	grace := time.NewTimer(termGracePeriod)
	defer grace.Stop()

	select {
	case <-p.done:
		slog.Debug("kill process tree: process completed", "id", p.ID, "pid", pid)
		return nil
	case <-grace.C:
		slog.Debug("kill process tree: timed out", "id", p.ID, "pid", pid)
	}

	slog.Debug("kill process tree: SIGKILL", "id", p.ID, "pid", pid, "subprocs", len(targets))
	for _, target := range targets {
		exists, err := process.PidExists(target.Pid)
		if err != nil || !exists {
			continue
		}
		if err := target.Kill(); err != nil {
			slog.Warn("kill process tree: SIGKILL", "id", p.ID, "pid", target.Pid, "ppid", pid, "err", err)
		}
	}

	return nil
}

// processTreeBottomUp flattens the descendant tree of proc so that every
// child precedes its parent. Subtrees that can't be listed are skipped so
// that as much of the tree as possible still gets killed.
func processTreeBottomUp(proc *process.Process) []*process.Process {
	var tree []*process.Process

	children, err := proc.Children()
	if err != nil && len(children) == 0 {
		return []*process.Process{proc}
	}

	for _, child := range children {
		tree = append(tree, processTreeBottomUp(child)...)
	}

	return append(tree, proc)
}
