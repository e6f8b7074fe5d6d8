package audit

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// MaxFieldLength is the length above which a string audit field is
// truncated with an explicit marker.
const MaxFieldLength = 10000

const truncationMarker = "...[truncated]"

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// sanitizeField centralises the hygiene every user-visible string field
// gets before it is written: ANSI escapes stripped, then truncated.
func sanitizeField(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	if len(s) > MaxFieldLength {
		return s[:MaxFieldLength] + truncationMarker
	}
	return s
}

// Logger appends audit entries as one JSON object per line. Writes are
// serialised; the logger never panics or blocks a caller past a single
// mutex-guarded write.
type Logger struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	logger *slog.Logger
}

// NewLogger wraps w (typically a rotated file or stdout) as an audit sink.
func NewLogger(w io.Writer, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	closer, _ := w.(io.Closer)
	return &Logger{w: bufio.NewWriter(w), closer: closer, logger: logger}
}

// Log writes one audit entry. Failures to marshal or write are logged via
// slog and never returned — audit logging must never be the reason a tool
// call fails.
func (l *Logger) Log(entry Entry) {
	entry.Timestamp = time.Now().UTC()
	if entry.Error != "" {
		entry.Error = sanitizeField(entry.Error)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn("audit: failed to marshal entry", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		l.logger.Warn("audit: failed to write entry", "error", err)
		return
	}
	if err := l.w.WriteByte('\n'); err != nil {
		l.logger.Warn("audit: failed to write entry", "error", err)
		return
	}
	if err := l.w.Flush(); err != nil {
		l.logger.Warn("audit: failed to flush entry", "error", err)
	}
}

// Close flushes and, if the underlying writer is closable, closes it.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return err
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// ToolCall records a successful tool execution. output is truncated via
// sanitizeField before being attached.
func (l *Logger) ToolCall(sessionID, toolName string, input, output any, category string, approvalRequired bool, durationMS int64) {
	l.Log(Entry{
		EventType:        EventToolCall,
		SessionID:        sessionID,
		ToolName:         toolName,
		Input:            sanitizeValue(input),
		Output:           truncateOutput(output),
		ActionCategory:   category,
		ApprovalRequired: approvalRequired,
		DurationMS:       durationMS,
	})
}

// ToolDenied records a permission denial; no handler ran.
func (l *Logger) ToolDenied(sessionID, toolName string, input any, category string) {
	l.Log(Entry{
		EventType:        EventToolDenied,
		SessionID:        sessionID,
		ToolName:         toolName,
		Input:            sanitizeValue(input),
		ActionCategory:   category,
		ApprovalRequired: true,
	})
}

// ToolError records a handler exception.
func (l *Logger) ToolError(sessionID, toolName string, input any, category string, err string, durationMS int64) {
	l.Log(Entry{
		EventType:      EventToolError,
		SessionID:      sessionID,
		ToolName:       toolName,
		Input:          sanitizeValue(input),
		ActionCategory: category,
		Error:          sanitizeField(err),
		DurationMS:     durationMS,
	})
}

func truncateOutput(output any) any {
	return sanitizeValue(output)
}

// sanitizeValue recurses through a tool's input/output shape so no
// user-visible string field — however deeply nested in a map or list —
// escapes the ANSI-stripping and truncation sanitizeField applies to the
// top-level Output and Error fields.
func sanitizeValue(value any) any {
	switch v := value.(type) {
	case string:
		return sanitizeField(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = sanitizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return value
	}
}
