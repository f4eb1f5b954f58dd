package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
	"github.com/dewey-index/dewey/internal/index"
)

func TestExitCodeFor_Nil(t *testing.T) {
	assert.Equal(t, exitOK, ExitCodeFor(nil))
}

func TestExitCodeFor_PartialReindexError(t *testing.T) {
	err := &partialReindexError{stats: index.Stats{ChunksCommitted: 3}, cause: errors.New("boom")}
	assert.Equal(t, exitPartial, ExitCodeFor(err))
	assert.Equal(t, "boom", err.Error())
}

func TestExitCodeFor_CancelledIsPartial(t *testing.T) {
	err := deweyerrors.Cancelled("stopped", context.Canceled)
	assert.Equal(t, exitPartial, ExitCodeFor(err))
}

func TestExitCodeFor_OtherErrorsAreFatal(t *testing.T) {
	assert.Equal(t, exitFatal, ExitCodeFor(errors.New("something broke")))
}

func TestPartialReindexError_UnwrapsCause(t *testing.T) {
	cause := errors.New("underlying")
	err := &partialReindexError{cause: cause}
	assert.Equal(t, cause, errors.Unwrap(err))
}
