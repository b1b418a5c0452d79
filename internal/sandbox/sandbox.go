// Package sandbox evaluates model-generated plotting scripts. Scripts are
// Starlark with a Python-compatible dialect; the only way out of the
// interpreter is the df/plt/sns surface, and every run is bounded by a step
// budget and a wall-clock timeout. Isolated runners additionally execute each
// script in a child process under a memory rlimit and a hard kill deadline.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/KaramelBytes/vizqa/internal/chart"
	"github.com/KaramelBytes/vizqa/internal/table"
)

var (
	// ErrTimeout is wrapped by Error when a run exceeds its wall-clock limit.
	ErrTimeout = errors.New("execution timed out")
	// ErrStepLimit is wrapped by Error when a run exceeds its step budget.
	ErrStepLimit = errors.New("execution step limit exceeded")
)

// Error describes a failed script. Line is 1-based, 0 when unknown.
type Error struct {
	Line int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Options bounds a Runner.
type Options struct {
	Timeout    time.Duration
	MaxSteps   uint64
	MaxFigures int
	// Concurrency caps simultaneous runs; it also sizes the thread pool.
	Concurrency int
	// Isolate runs every script in a child process (see RunChild).
	Isolate bool
	// MaxMemory is the child's address-space limit in bytes.
	MaxMemory int64
	// Executable is the child binary; empty means os.Executable().
	Executable string
	Logger     *zap.Logger
}

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxSteps    = 5_000_000
	DefaultMaxFigures  = 20
	DefaultConcurrency = 4
	DefaultMaxMemory   = 2 << 30
)

// Runner executes scripts against a table.
type Runner struct {
	opts Options
	sem  *semaphore.Weighted
	pool *threadPool
	log  *zap.Logger
}

// New returns a Runner; zero options take defaults.
func New(opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.MaxFigures <= 0 {
		opts.MaxFigures = DefaultMaxFigures
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = DefaultMaxMemory
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.Concurrency)),
		pool: newThreadPool(opts.Concurrency),
		log:  log,
	}
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

const scriptName = "plot.star"

// Run executes src with df bound to a read-only view of t and returns the
// figures the script produced, in creation order. t is never modified.
func (r *Runner) Run(ctx context.Context, src string, t *table.Table) ([]*chart.Figure, error) {
	src, err := stripImports(src)
	if err != nil {
		return nil, err
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, &Error{Msg: "waiting for a sandbox slot: " + err.Error(), Err: err}
	}
	defer r.sem.Release(1)

	if r.opts.Isolate {
		return r.runIsolated(ctx, src, t)
	}
	return r.runLocal(ctx, src, t)
}

func (r *Runner) runLocal(ctx context.Context, src string, t *table.Table) ([]*chart.Figure, error) {
	c := newCanvas(r.opts.MaxFigures)
	thread := r.pool.get(scriptName)
	thread.Print = func(_ *starlark.Thread, msg string) {
		r.log.Debug("script output", zap.String("msg", msg))
	}
	thread.SetLocal(canvasKey, c)
	thread.SetMaxExecutionSteps(r.opts.MaxSteps)

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	stop := make(chan struct{})
	watched := make(chan bool, 1)
	go func() {
		select {
		case <-runCtx.Done():
			thread.Cancel("timeout")
			watched <- true
		case <-stop:
			watched <- false
		}
	}()

	_, err := starlark.ExecFileOptions(fileOptions, thread, scriptName, src, predeclared(newFrame(t)))
	close(stop)
	timedOut := <-watched
	steps := thread.ExecutionSteps()
	stepLimited := steps >= r.opts.MaxSteps
	r.pool.put(thread)

	if err != nil {
		serr := scriptError(err)
		switch {
		case timedOut:
			serr.Err = ErrTimeout
			serr.Msg = fmt.Sprintf("%s (limit %s)", ErrTimeout, r.opts.Timeout)
		case stepLimited:
			serr.Err = ErrStepLimit
			serr.Msg = fmt.Sprintf("%s (limit %d)", ErrStepLimit, r.opts.MaxSteps)
		}
		r.log.Debug("script failed", zap.Error(serr), zap.Uint64("steps", steps))
		return nil, serr
	}
	figs, err := c.finish()
	if err != nil {
		return nil, &Error{Msg: err.Error(), Err: err}
	}
	r.log.Debug("script finished", zap.Int("figures", len(figs)), zap.Uint64("steps", steps))
	return figs, nil
}

// scriptError converts interpreter errors into *Error with a line number.
func scriptError(err error) *Error {
	var serr *Error
	if errors.As(err, &serr) {
		return &Error{Line: serr.Line, Msg: serr.Msg, Err: serr.Err}
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		line := 0
		for i := len(evalErr.CallStack) - 1; i >= 0; i-- {
			pos := evalErr.CallStack[i].Pos
			if pos.IsValid() && pos.Filename() == scriptName {
				line = int(pos.Line)
				break
			}
		}
		return &Error{Line: line, Msg: evalErr.Msg}
	}
	var synErr syntax.Error
	if errors.As(err, &synErr) {
		return &Error{Line: int(synErr.Pos.Line), Msg: "syntax error: " + synErr.Msg}
	}
	var resErrs resolve.ErrorList
	if errors.As(err, &resErrs) && len(resErrs) > 0 {
		return &Error{Line: int(resErrs[0].Pos.Line), Msg: resErrs[0].Msg}
	}
	return &Error{Msg: err.Error()}
}

var (
	importRe     = regexp.MustCompile(`^\s*import\s+(.+?)\s*$`)
	fromImportRe = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+.+$`)
)

// allowedImports are the libraries whose surface is predeclared.
var allowedImports = map[string]bool{
	"matplotlib": true,
	"seaborn":    true,
	"pandas":     true,
	"numpy":      true,
}

// stripImports blanks import lines for the plotting libraries and rejects
// every other import. Line numbers are preserved.
func stripImports(src string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	for i, line := range lines {
		var modules []string
		if m := fromImportRe.FindStringSubmatch(line); m != nil {
			modules = []string{m[1]}
		} else if m := importRe.FindStringSubmatch(line); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				fields := strings.Fields(part)
				if len(fields) > 0 {
					modules = append(modules, fields[0])
				}
			}
		} else {
			continue
		}
		for _, mod := range modules {
			root, _, _ := strings.Cut(mod, ".")
			if !allowedImports[root] {
				return "", &Error{Line: i + 1, Msg: fmt.Sprintf("import of %q is not allowed", mod)}
			}
		}
		lines[i] = ""
	}
	return strings.Join(lines, "\n"), nil
}
