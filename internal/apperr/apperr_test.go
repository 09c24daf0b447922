package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		Validation:   http.StatusBadRequest,
		Unauthorized: http.StatusUnauthorized,
		Forbidden:    http.StatusForbidden,
		NotFound:     http.StatusNotFound,
		Conflict:     http.StatusConflict,
		Upstream:     http.StatusBadGateway,
		Timeout:      http.StatusGatewayTimeout,
		Internal:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		require.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := New(NotFound, "user 3 not found")
	wrapped := fmt.Errorf("delete user: %w", base)

	require.Equal(t, NotFound, KindOf(wrapped))
	require.True(t, Is(wrapped, NotFound))
	require.Equal(t, "user 3 not found", Message(wrapped))
}

func TestPlainErrorsAreInternal(t *testing.T) {
	err := errors.New("pq: connection refused")

	require.Equal(t, Internal, KindOf(err))
	require.False(t, Is(nil, Internal))
	require.Equal(t, "internal server error", Message(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(Upstream, "weather service unavailable", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, "weather service unavailable", Message(err))
	require.Contains(t, err.Error(), "dial tcp")
}
