// Package notice carries transient user-facing messages produced by the
// pipelines (cleaning counts, visualization tips, warnings).
package notice

import "fmt"

// Level is the severity of a notice.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is a single message shown to the user.
type Notice struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

func Infof(format string, args ...any) Notice {
	return Notice{Level: Info, Text: fmt.Sprintf(format, args...)}
}

func Successf(format string, args ...any) Notice {
	return Notice{Level: Success, Text: fmt.Sprintf(format, args...)}
}

func Warnf(format string, args ...any) Notice {
	return Notice{Level: Warning, Text: fmt.Sprintf(format, args...)}
}

func Errorf(format string, args ...any) Notice {
	return Notice{Level: Error, Text: fmt.Sprintf(format, args...)}
}

// String prefixes the text with the CLI marker for its level.
func (n Notice) String() string {
	switch n.Level {
	case Success:
		return "✓ " + n.Text
	case Warning:
		return "⚠ " + n.Text
	case Error:
		return "✗ " + n.Text
	default:
		return "ℹ " + n.Text
	}
}
