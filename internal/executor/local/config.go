package local

import (
	"time"
)

// Config holds the configuration for host-process execution.
type Config struct {
	// Interpreter is the program that runs the lesson file (e.g. "python3").
	Interpreter string
	// Args are passed to the interpreter before the lesson file.
	Args []string
	// Extension is given to the temporary lesson file so interpreters that care can see it.
	Extension string
	// WorkDir is the content root; lessons resolve relative resources against it.
	WorkDir string
	// Env is appended to the parent environment.
	Env []string
	// WaitDelay bounds how long output pipes may stay open after the process is killed.
	WaitDelay time.Duration
}

// DefaultConfig runs lessons as Python scripts from the current directory.
func DefaultConfig() Config {
	return Config{
		Interpreter: "python3",
		Args:        []string{"-u"},
		Extension:   ".py",
		WaitDelay:   500 * time.Millisecond,
	}
}
