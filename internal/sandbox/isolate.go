package sandbox

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/vizqa/internal/chart"
	"github.com/KaramelBytes/vizqa/internal/table"
)

// ErrResourceLimit is wrapped by Error when an isolated run dies, typically
// because it exhausted its memory limit.
var ErrResourceLimit = errors.New("execution exceeded its resource limits")

// childEnv marks a process started by runIsolated.
const childEnv = "VIZQA_SANDBOX_CHILD"

// killGrace is how long past Timeout a child may run before it is killed.
// The child enforces Timeout itself between interpreter steps.
const killGrace = 500 * time.Millisecond

type childRequest struct {
	Src        string
	Table      *table.Table
	Timeout    time.Duration
	MaxSteps   uint64
	MaxFigures int
	MaxMemory  int64
}

type childResponse struct {
	Figures []*chart.Figure
	Failed  bool
	Line    int
	Msg     string
	// Limit is "timeout" or "steps" when a limit stopped the script.
	Limit string
}

// RunChild serves one script and exits when the process was started as a
// sandbox child; otherwise it returns immediately. Call it first in main,
// and in TestMain of any test binary that runs isolated scripts.
func RunChild() {
	if os.Getenv(childEnv) != "1" {
		return
	}
	os.Exit(serveChild(os.Stdin, os.Stdout, os.Stderr))
}

func serveChild(in io.Reader, out, diag io.Writer) int {
	var req childRequest
	if err := gob.NewDecoder(in).Decode(&req); err != nil {
		fmt.Fprintf(diag, "sandbox: decode request: %v\n", err)
		return 2
	}
	if err := limitMemory(req.MaxMemory); err != nil {
		fmt.Fprintf(diag, "sandbox: %v\n", err)
		return 2
	}
	r := New(Options{Timeout: req.Timeout, MaxSteps: req.MaxSteps, MaxFigures: req.MaxFigures, Concurrency: 1})
	figs, err := r.Run(context.Background(), req.Src, req.Table)

	resp := childResponse{Figures: figs}
	if err != nil {
		resp.Failed = true
		resp.Msg = err.Error()
		var serr *Error
		if errors.As(err, &serr) {
			resp.Line, resp.Msg = serr.Line, serr.Msg
		}
		switch {
		case errors.Is(err, ErrTimeout):
			resp.Limit = "timeout"
		case errors.Is(err, ErrStepLimit):
			resp.Limit = "steps"
		}
	}
	if err := gob.NewEncoder(out).Encode(&resp); err != nil {
		fmt.Fprintf(diag, "sandbox: encode response: %v\n", err)
		return 2
	}
	return 0
}

// runIsolated executes src in a child copy of this binary.
func (r *Runner) runIsolated(ctx context.Context, src string, t *table.Table) ([]*chart.Figure, error) {
	exe := r.opts.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, &Error{Msg: "locating sandbox executable: " + err.Error(), Err: err}
		}
	}
	var stdin bytes.Buffer
	req := childRequest{
		Src:        src,
		Table:      t,
		Timeout:    r.opts.Timeout,
		MaxSteps:   r.opts.MaxSteps,
		MaxFigures: r.opts.MaxFigures,
		MaxMemory:  r.opts.MaxMemory,
	}
	if err := gob.NewEncoder(&stdin).Encode(&req); err != nil {
		return nil, &Error{Msg: "encoding sandbox request: " + err.Error(), Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout+killGrace)
	defer cancel()
	cmd := exec.CommandContext(runCtx, exe)
	cmd.Env = append(os.Environ(), childEnv+"=1")
	cmd.Stdin = &stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()
	if runErr != nil && runCtx.Err() != nil {
		r.log.Debug("sandbox process killed", zap.Error(runErr))
		return nil, &Error{Msg: fmt.Sprintf("%s (limit %s)", ErrTimeout, r.opts.Timeout), Err: ErrTimeout}
	}
	var resp childResponse
	if err := gob.NewDecoder(&stdout).Decode(&resp); err != nil {
		r.log.Warn("sandbox process failed",
			zap.NamedError("exit", runErr),
			zap.String("stderr", firstLines(stderr.String(), 3)))
		return nil, &Error{
			Msg: fmt.Sprintf("%s (memory limit %d MB)", ErrResourceLimit, r.opts.MaxMemory>>20),
			Err: ErrResourceLimit,
		}
	}
	if !resp.Failed {
		return resp.Figures, nil
	}
	serr := &Error{Line: resp.Line, Msg: resp.Msg}
	switch resp.Limit {
	case "timeout":
		serr.Err = ErrTimeout
	case "steps":
		serr.Err = ErrStepLimit
	}
	return nil, serr
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(strings.TrimSpace(s), "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
