package grid

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      Kind
		retryable bool
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "network", err: fmt.Errorf("fetch: %w", ErrNetwork), want: KindNetwork, retryable: true},
		{name: "net.Error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: KindNetwork, retryable: true},
		{name: "timeout", err: ErrTimeout, want: KindTimeout, retryable: true},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout, retryable: true},
		{name: "not found", err: fmt.Errorf("row: %w", ErrNotFound), want: KindNotFound},
		{name: "invalid number", err: ErrInvalidNumber, want: KindValidation},
		{name: "empty column name", err: ErrEmptyColumnName, want: KindValidation},
		{name: "other", err: errors.New("boom"), want: KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

func TestParseColumnType(t *testing.T) {
	typ, ok := ParseColumnType("number")
	assert.True(t, ok)
	assert.Equal(t, ColumnNumber, typ)

	typ, ok = ParseColumnType("")
	assert.True(t, ok)
	assert.Equal(t, ColumnText, typ)

	_, ok = ParseColumnType("blob")
	assert.False(t, ok)
}
