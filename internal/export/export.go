// Package export writes execution history in formats meant for people and
// other tools: JSON (same shape as the history file), YAML and a Markdown table.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/lesson-runner/internal/model"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts json, yaml/yml and md/markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json, yaml or md)", s)
}

// Record is the flattened, YAML-friendly view of one history entry.
type Record struct {
	ID         string   `yaml:"id"`
	Category   string   `yaml:"category"`
	Identifier string   `yaml:"identifier"`
	Mode       string   `yaml:"mode"`
	Timestamp  string   `yaml:"timestamp"`
	Success    bool     `yaml:"success"`
	Status     string   `yaml:"status"`
	Stdout     string   `yaml:"stdout,omitempty"`
	Stderr     string   `yaml:"stderr,omitempty"`
	TimeMillis *float64 `yaml:"time_ms,omitempty"`
	MemoryKB   *int64   `yaml:"memory_kb,omitempty"`
	ExitCode   *int     `yaml:"exit_code,omitempty"`
	Token      string   `yaml:"token,omitempty"`
}

func toRecord(e model.HistoryEntry) Record {
	return Record{
		ID:         e.ID,
		Category:   e.Category,
		Identifier: e.Identifier,
		Mode:       string(e.Mode),
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
		Success:    e.Result.Success,
		Status:     e.Result.StatusLabel,
		Stdout:     e.Result.Stdout,
		Stderr:     e.Result.Stderr,
		TimeMillis: e.Result.TimeMillis,
		MemoryKB:   e.Result.MemoryKB,
		ExitCode:   e.Result.ExitCode,
		Token:      e.Result.Token,
	}
}

// Write renders entries to w in the given format.
func Write(w io.Writer, format Format, entries []model.HistoryEntry) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, entries)
	case FormatYAML:
		return writeYAML(w, entries)
	case FormatMarkdown:
		return writeMarkdown(w, entries)
	}
	return fmt.Errorf("export: unsupported format %q", format)
}

func writeJSON(w io.Writer, entries []model.HistoryEntry) error {
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("export: encoding json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, entries []model.HistoryEntry) error {
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, toRecord(e))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("export: encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("export: flushing yaml: %w", err)
	}
	return nil
}

func writeMarkdown(w io.Writer, entries []model.HistoryEntry) error {
	var b strings.Builder
	b.WriteString("# Execution History\n\n")
	if len(entries) == 0 {
		b.WriteString("_No executions recorded._\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("| # | Time (UTC) | Lesson | Mode | Status | Duration |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for i, e := range entries {
		status := e.Result.StatusLabel
		if e.Result.Success {
			status = "✅ " + status
		} else {
			status = "❌ " + status
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			i+1,
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			mdEscape(e.Ref().String()),
			e.Mode,
			mdEscape(status),
			e.Result.Duration.Round(time.Millisecond),
		)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("export: writing markdown: %w", err)
	}
	return nil
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
