package core

import (
	"os"
	"syscall"
)

// Exit codes for the CLI.
// Signal-based exits follow the Unix convention of 128 + signal number.
const (
	// ExitCodeSuccess indicates a clean run (exit code 0)
	ExitCodeSuccess = 0

	// ExitCodeError indicates a generation or runtime failure (exit code 1)
	ExitCodeError = 1

	// ExitCodeUsage indicates invalid input that never reached the network (exit code 2)
	ExitCodeUsage = 2

	// ExitCodeSIGINT indicates termination due to SIGINT (Ctrl+C): 128 + 2
	ExitCodeSIGINT = 130

	// ExitCodeSIGTERM indicates termination due to SIGTERM: 128 + 15
	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeUsage:
		return "usage"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// ExitCodeForSignal maps a received signal to its conventional exit code.
func ExitCodeForSignal(sig os.Signal) int {
	if sig == syscall.SIGTERM {
		return ExitCodeSIGTERM
	}
	return ExitCodeSIGINT
}
