// Package debug provides detailed session logging for troubleshooting a
// pipeline run.
package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Logger captures a structured trace of one pipeline run.
type Logger struct {
	mu          sync.Mutex
	enabled     bool
	fullCapture bool
	outputPath  string
	session     *Session
	pageHTML    []byte
	stageData   map[string]interface{}
}

// Session is the serialized debug trace.
type Session struct {
	StartTime  time.Time              `json:"start_time"`
	EndTime    *time.Time             `json:"end_time,omitempty"`
	Fetch      *FetchLog              `json:"fetch,omitempty"`
	Stages     []*StageLog            `json:"stages"`
	SystemInfo map[string]interface{} `json:"system_info"`
}

// FetchLog records the single source document request.
type FetchLog struct {
	Timestamp   time.Time     `json:"timestamp"`
	URL         string        `json:"url"`
	FinalURL    string        `json:"final_url,omitempty"`
	StatusCode  int           `json:"status_code"`
	BodySize    int           `json:"body_size"`
	Duration    time.Duration `json:"duration"`
	BodyPreview string        `json:"body_preview,omitempty"`
}

// StageLog records one pipeline stage.
type StageLog struct {
	Name      string        `json:"name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration"`
	RowsIn    int           `json:"rows_in"`
	RowsOut   int           `json:"rows_out"`
	Error     string        `json:"error,omitempty"`
}

// NewLogger creates a debug logger
// enabled: enables session capture
// fullCapture: also snapshots the fetched page and the stage payloads
// outputDir: base output directory for debug files
func NewLogger(enabled bool, fullCapture bool, outputDir string) *Logger {
	logger := &Logger{
		enabled:     enabled,
		fullCapture: fullCapture,
		session: &Session{
			StartTime: time.Now(),
			Stages:    []*StageLog{},
			SystemInfo: map[string]interface{}{
				"go_version":   runtime.Version(),
				"timestamp":    time.Now().Format(time.RFC3339),
				"full_capture": fullCapture,
			},
		},
	}

	if enabled {
		logger.outputPath = filepath.Join(outputDir, "debug")
	}

	return logger
}

// IsEnabled returns whether debug logging is enabled
func (l *Logger) IsEnabled() bool {
	return l.enabled
}

// IsFullCapture returns whether page snapshots are enabled
func (l *Logger) IsFullCapture() bool {
	return l.fullCapture
}

// LogFetch records the source document request. With full capture the body
// is retained for the page snapshot written by Finalize.
func (l *Logger) LogFetch(url, finalURL string, statusCode int, body []byte, duration time.Duration) {
	if !l.enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.session.Fetch = &FetchLog{
		Timestamp:   time.Now(),
		URL:         url,
		FinalURL:    finalURL,
		StatusCode:  statusCode,
		BodySize:    len(body),
		Duration:    duration,
		BodyPreview: truncateString(string(body), 1000),
	}

	if l.fullCapture {
		l.pageHTML = make([]byte, len(body))
		copy(l.pageHTML, body)
	}
}

// LogStageData retains a stage's output payload for the snapshot file
// written by Finalize as <name>.json. Only full-capture sessions keep
// payloads.
func (l *Logger) LogStageData(name string, data interface{}) {
	if !l.enabled || !l.fullCapture {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stageData == nil {
		l.stageData = make(map[string]interface{})
	}
	l.stageData[name] = data
}

// StartStage begins logging a new pipeline stage
func (l *Logger) StartStage(name string) *StageLog {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stageLog := &StageLog{
		Name:      name,
		StartTime: time.Now(),
	}
	l.session.Stages = append(l.session.Stages, stageLog)
	return stageLog
}

// EndStage marks a stage as complete with its row counts
func (l *Logger) EndStage(stageLog *StageLog, rowsIn, rowsOut int, err error) {
	if !l.enabled || stageLog == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	stageLog.EndTime = &now
	stageLog.Duration = now.Sub(stageLog.StartTime)
	stageLog.RowsIn = rowsIn
	stageLog.RowsOut = rowsOut
	if err != nil {
		stageLog.Error = err.Error()
	}
}

// Finalize completes the debug session and writes the session files
func (l *Logger) Finalize() error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.session.EndTime = &now

	if err := os.MkdirAll(l.outputPath, 0750); err != nil {
		return fmt.Errorf("failed to create debug output directory: %w", err)
	}

	data, err := json.MarshalIndent(l.session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	sessionPath := filepath.Join(l.outputPath, "session.json")
	if err := os.WriteFile(sessionPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if l.fullCapture && len(l.pageHTML) > 0 {
		if err := l.writeSnapshots(); err != nil {
			return err
		}
	}

	// Write per-stage payload files
	for name, payload := range l.stageData {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal %s snapshot: %w", name, err)
		}
		stagePath := filepath.Join(l.outputPath, name+".json")
		if err := os.WriteFile(stagePath, data, 0600); err != nil {
			return fmt.Errorf("failed to write %s snapshot: %w", name, err)
		}
	}

	return nil
}

// writeSnapshots saves the fetched page verbatim and as Markdown, which is
// far easier to scan for the table than raw publisher HTML.
func (l *Logger) writeSnapshots() error {
	htmlPath := filepath.Join(l.outputPath, "page.html")
	if err := os.WriteFile(htmlPath, l.pageHTML, 0600); err != nil {
		return fmt.Errorf("failed to write page snapshot: %w", err)
	}

	markdown, err := md.ConvertString(string(l.pageHTML))
	if err != nil {
		// Fall back to the raw HTML if conversion fails
		markdown = string(l.pageHTML)
	}
	mdPath := filepath.Join(l.outputPath, "page.md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0600); err != nil {
		return fmt.Errorf("failed to write markdown snapshot: %w", err)
	}

	return nil
}

// GetOutputPath returns the directory where debug data is written
func (l *Logger) GetOutputPath() string {
	return l.outputPath
}

// GetSessionPath returns the path to the session.json file
func (l *Logger) GetSessionPath() string {
	if !l.enabled {
		return ""
	}
	return filepath.Join(l.outputPath, "session.json")
}

// truncateString limits a string to a maximum length with ellipsis
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
