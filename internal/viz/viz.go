// Package viz turns a natural-language request into charts: it prompts the
// model with a dataset summary, extracts the returned code, runs it in the
// sandbox and renders the resulting figures.
package viz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/vizqa/internal/ai"
	"github.com/KaramelBytes/vizqa/internal/chart"
	"github.com/KaramelBytes/vizqa/internal/metrics"
	"github.com/KaramelBytes/vizqa/internal/notice"
	"github.com/KaramelBytes/vizqa/internal/sandbox"
	"github.com/KaramelBytes/vizqa/internal/table"
	"github.com/KaramelBytes/vizqa/internal/utils"
)

var (
	ErrEmptyTable  = errors.New("Error: Empty DataFrame provided")
	ErrNoCode      = errors.New("No valid Python code detected in the response.")
	ErrEmptyPrompt = errors.New("Please describe the visualization you want.")
)

// SaveTip follows every successful visualization.
const SaveTip = "Kindly save this plot to get insights on it from the section Get Insights."

// ExecError wraps a failure while running or rendering generated code.
type ExecError struct{ Err error }

func (e *ExecError) Error() string { return fmt.Sprintf("Error executing visualization: %v", e.Err) }

func (e *ExecError) Unwrap() error { return e.Err }

// Executor runs generated code against a table and returns its figures.
type Executor interface {
	Run(ctx context.Context, src string, t *table.Table) ([]*chart.Figure, error)
}

// Chart is a rendered figure.
type Chart struct {
	ID     string
	Title  string
	Figure *chart.Figure
	PNG    []byte
}

// Result is the outcome of one request. Response always holds the raw model
// text once the model has answered.
type Result struct {
	Response  string
	Code      string
	Fallback  bool
	Charts    []Chart
	Notices   []notice.Notice
	RequestID string
	Usage     ai.Usage
}

// Options configures the model call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// SummaryTokenLimit caps the dataset summary embedded in the prompt.
	SummaryTokenLimit int
}

const (
	DefaultMaxTokens         = 8000
	DefaultSummaryTokenLimit = 6000
)

// Service runs the visualization pipeline.
type Service struct {
	rt   ai.Runtime
	exec Executor
	opts Options
	log  *zap.Logger
	m    *metrics.Metrics
}

// New returns a Service. exec may be nil, in which case a sandbox.Runner
// with default limits is used.
func New(rt ai.Runtime, exec Executor, opts Options, log *zap.Logger) *Service {
	if exec == nil {
		exec = sandbox.New(sandbox.Options{Logger: log})
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.SummaryTokenLimit == 0 {
		opts.SummaryTokenLimit = DefaultSummaryTokenLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{rt: rt, exec: exec, opts: opts, log: log, m: metrics.Get()}
}

// Generate asks the model for plotting code and executes it against t.
// When the model answered but no chart could be produced, the partial
// Result is returned together with ErrNoCode or an *ExecError so callers
// can still show the response.
func (s *Service) Generate(ctx context.Context, t *table.Table, request string) (*Result, error) {
	if t == nil || t.Empty() {
		return nil, ErrEmptyTable
	}
	if strings.TrimSpace(request) == "" {
		return nil, ErrEmptyPrompt
	}
	if s.rt == nil {
		return nil, ai.ErrNoAPIKey
	}

	prompt := BuildPrompt(t, request, s.opts.SummaryTokenLimit)
	s.log.Info("Calling LLM for visualization generation",
		zap.String("model", s.opts.Model),
		zap.Int("prompt_tokens_est", utils.CountTokens(prompt)),
	)
	start := time.Now()
	resp, err := s.rt.Generate(ctx, ai.GenerateRequest{
		Model:       s.opts.Model,
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	s.m.LLMDuration.WithLabelValues("visualize").Observe(time.Since(start).Seconds())
	s.m.LLMRequestsTotal.WithLabelValues("visualize", metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.Error("visualization request failed", zap.Error(err))
		return nil, fmt.Errorf("generate visualization: %w", err)
	}
	s.m.LLMTokensTotal.WithLabelValues("visualize", "prompt").Add(float64(resp.Usage.PromptTokens))
	s.m.LLMTokensTotal.WithLabelValues("visualize", "completion").Add(float64(resp.Usage.CompletionTokens))

	res := &Result{Response: resp.Text(), RequestID: resp.RequestID, Usage: resp.Usage}
	code, fallback, err := ExtractCode(res.Response)
	if err != nil {
		res.Notices = append(res.Notices, notice.Warnf("%s", ErrNoCode))
		return res, err
	}
	res.Code, res.Fallback = code, fallback
	if fallback {
		s.log.Debug("no fenced code block, executing raw response")
	}

	charts, err := s.execute(ctx, code, t)
	if err != nil {
		execErr := &ExecError{Err: err}
		s.log.Error("Error executing visualization", zap.Error(err))
		res.Notices = append(res.Notices, notice.Errorf("%s", execErr))
		return res, execErr
	}
	res.Charts = charts
	if len(charts) == 0 {
		res.Notices = append(res.Notices, notice.Warnf("The code ran but did not draw a chart."))
	}
	res.Notices = append(res.Notices, notice.Infof(SaveTip))
	return res, nil
}

func (s *Service) execute(ctx context.Context, code string, t *table.Table) ([]Chart, error) {
	start := time.Now()
	figs, err := s.exec.Run(ctx, code, t)
	s.m.SandboxDuration.Observe(time.Since(start).Seconds())
	s.m.SandboxRunsTotal.WithLabelValues(runOutcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	charts := make([]Chart, 0, len(figs))
	for i, fig := range figs {
		png, err := chart.RenderPNG(fig)
		if err != nil {
			return nil, fmt.Errorf("render figure %d: %w", i+1, err)
		}
		charts = append(charts, Chart{ID: uuid.NewString(), Title: fig.Title, Figure: fig, PNG: png})
	}
	s.m.FiguresRendered.Add(float64(len(charts)))
	return charts, nil
}

func runOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sandbox.ErrTimeout):
		return "timeout"
	case errors.Is(err, sandbox.ErrStepLimit):
		return "step_limit"
	case errors.Is(err, sandbox.ErrResourceLimit):
		return "resource_limit"
	default:
		return "error"
	}
}
