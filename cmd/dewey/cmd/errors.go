package cmd

import (
	"errors"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
	"github.com/dewey-index/dewey/internal/index"
)

// Exit codes per spec §6's CLI surface: 0 success, 2 partial progress,
// 1 fatal error.
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

// partialReindexError signals a reindex that committed some but not all
// chunks (spec §8 scenario S6): the CLI reports exit code 2.
type partialReindexError struct {
	stats index.Stats
	cause error
}

func (e *partialReindexError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return "reindex stopped with partial progress"
}

func (e *partialReindexError) Unwrap() error { return e.cause }

// ExitCodeFor maps err to the process exit code described in spec §6.
func ExitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var pe *partialReindexError
	if errors.As(err, &pe) {
		return exitPartial
	}
	if deweyerrors.KindOf(err) == deweyerrors.KindCancelled {
		return exitPartial
	}
	return exitFatal
}
