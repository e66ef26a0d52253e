package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/gatherd/internal/query"
)

const (
	defaultDiagnosticsSubject = "diagnostics.recent"
	defaultMaxDiagnostics     = 20
)

// DiagnosticsConfig configures the diagnostics collector.
type DiagnosticsConfig struct {
	// Subject is the request subject the diagnostics agent answers on.
	// Defaults to "diagnostics.recent".
	Subject string

	// MaxEntries caps entries per response. Defaults to 20.
	MaxEntries int
}

// DiagnosticsCollector asks a diagnostics agent over NATS for recent
// build and runtime failures observed in the workspace.
type DiagnosticsCollector struct {
	cfg  DiagnosticsConfig
	conn *nats.Conn
}

// diagnosticsRequest is the request/reply wire shape.
type diagnosticsRequest struct {
	WorkingDir string `json:"working_dir"`
	Limit      int    `json:"limit"`
}

type diagnosticsResponse struct {
	Entries []diagnosticsEntry `json:"entries"`
}

type diagnosticsEntry struct {
	Level   string `json:"level"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

// NewDiagnosticsCollector wraps an established NATS connection.
func NewDiagnosticsCollector(conn *nats.Conn, cfg DiagnosticsConfig) (*DiagnosticsCollector, error) {
	if conn == nil {
		return nil, fmt.Errorf("diagnostics collector requires a NATS connection")
	}
	if cfg.Subject == "" {
		cfg.Subject = defaultDiagnosticsSubject
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxDiagnostics
	}
	return &DiagnosticsCollector{cfg: cfg, conn: conn}, nil
}

// ID implements Collector.
func (c *DiagnosticsCollector) ID() string { return "diagnostics" }

// Collect issues one request and formats the reply. No responder on the
// subject surfaces as an error; an empty entry list yields empty text.
func (c *DiagnosticsCollector) Collect(ctx context.Context, q query.Query) (string, error) {
	payload, err := json.Marshal(diagnosticsRequest{
		WorkingDir: q.WorkingDir,
		Limit:      c.cfg.MaxEntries,
	})
	if err != nil {
		return "", fmt.Errorf("encoding diagnostics request: %w", err)
	}

	msg, err := c.conn.RequestWithContext(ctx, c.cfg.Subject, payload)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return "", fmt.Errorf("no diagnostics agent on %s: %w", c.cfg.Subject, err)
		}
		return "", fmt.Errorf("diagnostics request: %w", err)
	}

	var parsed diagnosticsResponse
	if err := json.Unmarshal(msg.Data, &parsed); err != nil {
		return "", fmt.Errorf("decoding diagnostics response: %w", err)
	}
	if len(parsed.Entries) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("recent diagnostics:\n")
	for i, e := range parsed.Entries {
		if i >= c.cfg.MaxEntries {
			break
		}
		level := strings.ToUpper(e.Level)
		if level == "" {
			level = "INFO"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", level, e.Source, e.Message)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
