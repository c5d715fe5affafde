// Package exit carries the message and process exit code of a CLI run.
package exit

import (
	"fmt"
	"io"
	"os"
)

// Process exit codes.
const (
	CodeSuccess = 0
	CodeFailure = 1
	// CodeGraphQLErrors means every request completed but at least one final
	// result carried GraphQL errors.
	CodeGraphQLErrors = 2
)

// Result holds the output destination and exit code for program termination.
type Result struct {
	Output   io.Writer
	ExitCode int
	Message  string
}

// Print writes the result message to the configured output destination.
func (r *Result) Print() {
	if r.Message == "" {
		return
	}
	fmt.Fprint(r.Output, r.Message)
}

// Success creates a result that writes to stdout and exits with CodeSuccess.
func Success(message string) *Result {
	return &Result{Output: os.Stdout, ExitCode: CodeSuccess, Message: message}
}

// Error creates a result that writes to stderr and exits with CodeFailure.
func Error(message string) *Result {
	return &Result{Output: os.Stderr, ExitCode: CodeFailure, Message: message}
}

func Errorf(format string, a ...any) *Result {
	return Error(fmt.Sprintf(format, a...))
}

// GraphQLErrors creates a result that writes to stderr and exits with CodeGraphQLErrors.
func GraphQLErrors(message string) *Result {
	return &Result{Output: os.Stderr, ExitCode: CodeGraphQLErrors, Message: message}
}
