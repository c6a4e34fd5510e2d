package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errStore = errors.New("pq: connection refused")

func TestError(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		err := New(CodeNotFound, "Widget not found or inactive")
		assert.Equal(t, "Widget not found or inactive", err.Error())
	})

	t.Run("wrapped cause is reachable", func(t *testing.T) {
		err := Wrap(errStore, CodeInternal, "create consent record")
		assert.Equal(t, "create consent record: pq: connection refused", err.Error())
		assert.ErrorIs(t, err, errStore)
	})

	t.Run("nil cause", func(t *testing.T) {
		err := Wrap(nil, CodeQuotaExceeded, "limit reached")
		assert.Equal(t, "limit reached", err.Error())
		assert.True(t, Is(err, CodeQuotaExceeded))
	})
}

func TestCodeLookup(t *testing.T) {
	inner := Wrap(errStore, CodeConstraintViolation, "check failed")
	outer := Wrap(fmt.Errorf("update: %w", inner), CodeInternal, "update failed")

	tests := []struct {
		name    string
		err     error
		code    Code
		is      bool
		hasCode bool
		codeOf  Code
		message string
	}{
		{"outermost code matches", outer, CodeInternal, true, true, CodeInternal, "update failed"},
		{"inner code only via HasCode", outer, CodeConstraintViolation, false, true, CodeInternal, "update failed"},
		{"absent code", outer, CodeNotFound, false, false, CodeInternal, "update failed"},
		{"plain error", errStore, CodeInternal, false, false, CodeInternal, ""},
		{"fmt-wrapped coded error", fmt.Errorf("ctx: %w", inner), CodeConstraintViolation, true, true, CodeConstraintViolation, "check failed"},
		{"nil", nil, CodeInternal, false, false, CodeInternal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.is, Is(tt.err, tt.code))
			assert.Equal(t, tt.hasCode, HasCode(tt.err, tt.code))
			assert.Equal(t, tt.codeOf, CodeOf(tt.err))
			assert.Equal(t, tt.message, MessageOf(tt.err))
		})
	}
}
