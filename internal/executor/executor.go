package executor

import (
	"context"
	"fmt"
	"time"
)

// Mode selects which runner handles a request.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// ParseMode accepts the canonical names plus "judge0" as an alias for remote.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeLocal):
		return ModeLocal, nil
	case string(ModeRemote), "judge0":
		return ModeRemote, nil
	}
	return "", fmt.Errorf("unknown execution mode %q", s)
}

// DefaultTimeoutSeconds is applied when a request leaves TimeoutSeconds at zero.
const DefaultTimeoutSeconds = 30

// Status labels shared by all runners. Remote rejections use the service's own
// description instead (e.g. "Compilation Error", "Time Limit Exceeded").
const (
	StatusAccepted       = "Accepted"
	StatusTimeout        = "Timeout"
	StatusRuntimeError   = "Runtime Error"
	StatusExecutionError = "Execution Error"
	StatusAPIError       = "API Error"
	StatusFileError      = "File Error"
	StatusInternalError  = "Internal Error"
	StatusCancelled      = "Cancelled"
)

// LessonRef points back at the lesson a result belongs to. Lookup only.
type LessonRef struct {
	Category   string `json:"category"`
	Identifier string `json:"identifier"`
}

func (r LessonRef) String() string {
	return r.Category + "/" + r.Identifier
}

// ExecutionRequest represents a request to run one lesson's source.
type ExecutionRequest struct {
	Category       string `json:"category"`
	Identifier     string `json:"identifier"`
	Source         string `json:"source"`
	Stdin          string `json:"stdin,omitempty"`
	Mode           Mode   `json:"mode"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
	// LanguageID is the remote service's language id. Zero uses the client default.
	LanguageID int `json:"languageId,omitempty"`
}

// Timeout returns the effective wall-clock limit for the request.
func (r ExecutionRequest) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// EffectiveTimeoutSeconds is Timeout expressed in whole seconds.
func (r ExecutionRequest) EffectiveTimeoutSeconds() int {
	return int(r.Timeout() / time.Second)
}

// Ref returns the lesson identity of the request.
func (r ExecutionRequest) Ref() LessonRef {
	return LessonRef{Category: r.Category, Identifier: r.Identifier}
}

// ExecutionResult represents the normalized output and status of one run.
type ExecutionResult struct {
	Success     bool          `json:"success"`
	Stdout      string        `json:"stdout"`
	Stderr      string        `json:"stderr,omitempty"`
	StatusLabel string        `json:"status"`
	TimeMillis  *float64      `json:"timeMillis,omitempty"`
	MemoryKB    *int64        `json:"memoryKb,omitempty"`
	ExitCode    *int          `json:"exitCode,omitempty"`
	Token       string        `json:"token,omitempty"`
	Duration    time.Duration `json:"duration"`
	Mode        Mode          `json:"mode"`
	Lesson      LessonRef     `json:"lesson"`
}

// Validate checks the result invariants: one mode, a label, and a failure that
// explains itself.
func (r *ExecutionResult) Validate() error {
	if r.Mode != ModeLocal && r.Mode != ModeRemote {
		return fmt.Errorf("result has invalid mode %q", r.Mode)
	}
	if r.StatusLabel == "" {
		return fmt.Errorf("result has no status label")
	}
	if !r.Success && r.Stderr == "" && r.StatusLabel == StatusAccepted {
		return fmt.Errorf("failed result labeled %q without stderr", r.StatusLabel)
	}
	return nil
}

// Failure builds a failed result with the given label and message.
func Failure(mode Mode, label, stderr string) *ExecutionResult {
	return &ExecutionResult{
		Success:     false,
		Stderr:      stderr,
		StatusLabel: label,
		Mode:        mode,
	}
}

// Executor represents the core interface for running a lesson's source.
// Implementations turn every execution-level problem into a failed result; a
// returned error means the executor itself is broken.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
