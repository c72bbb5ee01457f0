package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		substr string
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, target: ErrVersionConflict},
		{name: "other pg error", err: &pgconn.PgError{Code: "42P01"}, substr: "[42P01]"},
		{name: "plain error", err: errors.New("connection reset"), substr: "connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapError(tt.err, "op")
			assert.Error(t, got)
			assert.Contains(t, got.Error(), "op: ")
			if tt.target != nil {
				assert.ErrorIs(t, got, tt.target)
			}
			if tt.substr != "" {
				assert.Contains(t, got.Error(), tt.substr)
			}
		})
	}

	assert.NoError(t, WrapError(nil, "op"))
}

func TestIsVersionConflict(t *testing.T) {
	assert.True(t, IsVersionConflict(WrapError(&pgconn.PgError{Code: "40001"}, "op")))
	assert.True(t, IsVersionConflict(errors.Join(errors.New("x"), ErrVersionConflict)))
	assert.False(t, IsVersionConflict(ErrLockTimeout))
}
