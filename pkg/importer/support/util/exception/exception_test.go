package exception

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewImportErrorf_ExtractsTrailingError(t *testing.T) {
	err := NewImportErrorf("parser", "failed to read row %d", 12, io.ErrUnexpectedEOF)

	assert.Equal(t, "parser", err.Module)
	assert.Equal(t, "failed to read row 12", err.Message)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "[parser] failed to read row 12: unexpected EOF", err.Error())
	assert.NotEmpty(t, err.StackTrace)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("step: %w", ErrTaskTimedOut)))
	assert.True(t, IsTimeout(NewImportError("runner", "deadline", context.DeadlineExceeded)))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(nil))
}

func TestIsPrecondition(t *testing.T) {
	assert.True(t, IsPrecondition(NewImportError("operator", "no file", ErrNoImportSource)))
	assert.True(t, IsPrecondition(ErrQueueInactive))
	assert.False(t, IsPrecondition(ErrTaskTimedOut))
}

func TestUserMessages(t *testing.T) {
	ue := NewUnitError(nil, "Value missing for customer_name", "Row 3: invalid date")
	assert.Equal(t, []string{"Value missing for customer_name", "Row 3: invalid date"}, UserMessages(fmt.Errorf("wrapped: %w", ue)))

	assert.Equal(t, []string{"boom"}, UserMessages(errors.New("boom")))
	assert.Equal(t, []string{"insert failed: boom"}, UserMessages(NewImportError("writer", "insert failed", errors.New("boom"))))
	assert.Nil(t, UserMessages(nil))
}

func TestTrace_PrefersImportErrorStack(t *testing.T) {
	err := NewImportError("writer", "insert failed", nil)
	trace := Trace(fmt.Errorf("unit 4: %w", err))

	assert.Contains(t, trace, "unit 4: [writer] insert failed")
	assert.Contains(t, trace, err.StackTrace)
	assert.Empty(t, Trace(nil))
}

func TestPanicError(t *testing.T) {
	assert.Equal(t, "panic recovered: index out of range", PanicError("runner", "index out of range").Message)

	cause := errors.New("nil map")
	assert.True(t, errors.Is(PanicError("runner", cause), cause))
}
