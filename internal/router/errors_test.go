package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corleone113/waypoint/internal/route"
)

func TestNavigationError_Helpers(t *testing.T) {
	from := &route.Route{FullPath: "/a"}
	to := &route.Route{FullPath: "/b"}

	tests := []struct {
		name    string
		err     error
		check   func(error) bool
		code    NavigationErrorCode
		outcome Outcome
	}{
		{"duplicated", NewDuplicatedError(from, to), IsDuplicated, ErrCodeDuplicated, OutcomeDuplicated},
		{"aborted", NewAbortedError(from, to, "no"), IsAborted, ErrCodeAborted, OutcomeAborted},
		{"cancelled", NewCancelledError(from, to), IsCancelled, ErrCodeCancelled, OutcomeCancelled},
		{"redirected", NewRedirectedError(from, to), IsRedirected, ErrCodeRedirected, OutcomeRedirected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("push: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.True(t, IsNavigationFailure(wrapped))
			assert.True(t, IsNavigationFailure(wrapped, tt.code))
			assert.Equal(t, tt.outcome, OutcomeOf(wrapped))
			assert.Contains(t, tt.err.Error(), string(tt.code))
		})
	}

	assert.False(t, IsNavigationFailure(NewAbortedError(from, to, "x"), ErrCodeCancelled, ErrCodeDuplicated))
	assert.False(t, IsNavigationFailure(errors.New("plain")))
	assert.Equal(t, OutcomeFailed, OutcomeOf(errors.New("plain")))
	assert.Equal(t, OutcomeCommitted, OutcomeOf(nil))
}

func TestNavigationError_MessageNamesPaths(t *testing.T) {
	err := NewDuplicatedError(&route.Route{FullPath: "/a"}, &route.Route{FullPath: "/a?x=1"})
	assert.Contains(t, err.Error(), `"/a?x=1"`)
}
