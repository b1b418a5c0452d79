package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/vizqa/internal/ai"
	cfgpkg "github.com/KaramelBytes/vizqa/internal/config"
	"github.com/KaramelBytes/vizqa/internal/insight"
	"github.com/KaramelBytes/vizqa/internal/sandbox"
	"github.com/KaramelBytes/vizqa/internal/viz"
)

// TestMain lets this test binary serve isolated sandbox runs started by
// the visualize command.
func TestMain(m *testing.M) {
	sandbox.RunChild()
	os.Exit(m.Run())
}

type stubRuntime struct {
	text  string
	calls int
}

func (s *stubRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.calls++
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Content: s.text}}},
		Usage:   ai.Usage{PromptTokens: 1200, CompletionTokens: 80},
	}, nil
}

// useStubRuntime swaps newRuntime for the duration of the test.
func useStubRuntime(t *testing.T, rt ai.Runtime) {
	t.Helper()
	old := newRuntime
	newRuntime = func(*cfgpkg.Global, string, *rate.Limiter) (ai.Runtime, error) { return rt, nil }
	t.Cleanup(func() { newRuntime = old })
}

// isolate points HOME at a temp dir so no user config leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg = nil
	t.Cleanup(func() { cfg = nil })
	return home
}

// resetFlags clears values and Changed state that persist across Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const peopleCSV = "Name,Age\nAlice,25\nBob,30\nAlice,25\nCara,\n"

func TestCLI_DescribeAndClean(t *testing.T) {
	home := isolate(t)
	data := writeFile(t, home, "people.csv", peopleCSV)

	out, err := runCmd(t, "describe", data)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{"Shape: 4 rows × 2 columns", "Column Names and Types:", "Dataset Description:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("describe output missing %q:\n%s", want, out)
		}
	}

	dst := filepath.Join(home, "clean.csv")
	out, err = runCmd(t, "clean", data, "-o", dst)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !strings.Contains(out, "Removed 1 duplicate rows") {
		t.Fatalf("expected duplicate notice, got:\n%s", out)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read cleaned file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 4 || lines[0] != "name,age" {
		t.Fatalf("unexpected cleaned csv:\n%s", b)
	}
}

func TestCLI_DescribeUnsupportedFormat(t *testing.T) {
	home := isolate(t)
	p := writeFile(t, home, "notes.txt", "hello")
	if _, err := runCmd(t, "describe", p); err == nil || !strings.Contains(err.Error(), "Unsupported file format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestCLI_VisualizeWritesPNG(t *testing.T) {
	home := isolate(t)
	data := writeFile(t, home, "people.csv", peopleCSV)
	rt := &stubRuntime{text: "Here you go:\n```python\nplt.bar(df[\"Name\"], df[\"Age\"])\nplt.title(\"Ages\")\n```"}
	useStubRuntime(t, rt)

	outDir := filepath.Join(home, "charts")
	out, err := runCmd(t, "visualize", data, "-p", "bar chart of ages", "-o", outDir, "--print-code")
	if err != nil {
		t.Fatalf("visualize: %v\n%s", err, out)
	}
	if rt.calls != 1 {
		t.Fatalf("expected one model call, got %d", rt.calls)
	}
	png, err := os.ReadFile(filepath.Join(outDir, "chart-1.png"))
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("chart is not a PNG")
	}
	for _, want := range []string{viz.SaveTip, `plt.title("Ages")`, "Tokens: 1200 prompt + 80 completion"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_VisualizePrintPromptSkipsModel(t *testing.T) {
	home := isolate(t)
	data := writeFile(t, home, "people.csv", peopleCSV)
	rt := &stubRuntime{}
	useStubRuntime(t, rt)

	out, err := runCmd(t, "visualize", data, "-p", "ages", "--print-prompt")
	if err != nil {
		t.Fatalf("visualize --print-prompt: %v", err)
	}
	if rt.calls != 0 {
		t.Fatalf("model should not be called, got %d calls", rt.calls)
	}
	if !strings.Contains(out, "Column Names and Types:") || !strings.Contains(out, "ages") {
		t.Fatalf("prompt not printed:\n%s", out)
	}
}

func TestCLI_VisualizeErrors(t *testing.T) {
	home := isolate(t)
	data := writeFile(t, home, "people.csv", peopleCSV)
	useStubRuntime(t, &stubRuntime{text: "   "})

	if _, err := runCmd(t, "visualize", data, "-p", "  "); !errors.Is(err, viz.ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	headerOnly := writeFile(t, home, "empty.csv", "name,age\n")
	if _, err := runCmd(t, "visualize", headerOnly, "-p", "  "); !errors.Is(err, viz.ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable before the prompt check, got %v", err)
	}
	if _, err := runCmd(t, "visualize", data, "-p", "ages", "-o", home); !errors.Is(err, viz.ErrNoCode) {
		t.Fatalf("expected ErrNoCode, got %v", err)
	}

	useStubRuntime(t, &stubRuntime{text: "```python\nplt.imshow(df)\n```"})
	out, err := runCmd(t, "visualize", data, "-p", "ages", "-o", home)
	var execErr *viz.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecError, got %v", err)
	}
	if !strings.Contains(out, "Error executing visualization") {
		t.Fatalf("expected error notice, got:\n%s", out)
	}
	if _, statErr := os.Stat(filepath.Join(home, "chart-1.png")); !os.IsNotExist(statErr) {
		t.Fatalf("no chart should be written on failure")
	}
}

func TestCLI_Insights(t *testing.T) {
	home := isolate(t)
	useStubRuntime(t, &stubRuntime{text: "Sales rise steadily through Q3."})

	img := writeFile(t, home, "chart.jpg", "\xff\xd8\xff\xe0not-really-a-jpeg")
	out, err := runCmd(t, "insights", img)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if !strings.Contains(out, "Sales rise steadily through Q3.") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	empty := writeFile(t, home, "empty.png", "")
	if _, err := runCmd(t, "insights", empty); !errors.Is(err, insight.ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := isolate(t)
	cfgPath := filepath.Join(home, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("default_provider: openrouter\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runCmd(t, "--config", cfgPath, "config", "set", "session_ttl_min", "15"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	c, err := cfgpkg.Load(cfgPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c.SessionTTLMin != 15 || c.DefaultProvider != "openrouter" {
		t.Fatalf("unexpected saved config: ttl=%d provider=%s", c.SessionTTLMin, c.DefaultProvider)
	}

	out, err := runCmd(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "session_ttl_min: 15") {
		t.Fatalf("show output missing ttl:\n%s", out)
	}
}

func TestCLI_ModelsList(t *testing.T) {
	isolate(t)
	out, err := runCmd(t, "models", "list", "--provider", "ollama", "--vision")
	if err != nil {
		t.Fatalf("models list: %v", err)
	}
	if !strings.Contains(out, "llava:latest") || strings.Contains(out, "qwen2.5-coder:7b") {
		t.Fatalf("unexpected model list:\n%s", out)
	}
}
