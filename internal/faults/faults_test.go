package faults

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrappedError(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(KindUpstreamUnavailable, base, "call redeban")

	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))
	assert.True(t, IsKind(err, KindUpstreamUnavailable))
	assert.True(t, errors.Is(err, base))

	// classification survives another layer of wrapping
	outer := fmt.Errorf("lookup failed: %w", err)
	assert.Equal(t, KindUpstreamUnavailable, KindOf(outer))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestRetryable(t *testing.T) {
	retryable := []Kind{KindUpstreamServer, KindUpstreamUnavailable, KindUpstreamTimeout}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), k.String())
	}
	terminal := []Kind{
		KindValidation, KindBadRequest, KindAuthentication, KindForbidden,
		KindMerchantNotFound, KindValidationFailed, KindRateLimited,
		KindUnexpectedStatus, KindResponseParse, KindTokenRefresh,
	}
	for _, k := range terminal {
		assert.False(t, k.Retryable(), k.String())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:          http.StatusBadRequest,
		KindBadRequest:          http.StatusBadRequest,
		KindAuthentication:      http.StatusUnauthorized,
		KindForbidden:           http.StatusForbidden,
		KindMerchantNotFound:    http.StatusNotFound,
		KindValidationFailed:    http.StatusUnprocessableEntity,
		KindRateLimited:         http.StatusTooManyRequests,
		KindTokenRefresh:        http.StatusBadGateway,
		KindUpstreamServer:      http.StatusBadGateway,
		KindUpstreamUnavailable: http.StatusServiceUnavailable,
		KindSecretUnavailable:   http.StatusServiceUnavailable,
		KindUpstreamTimeout:     http.StatusGatewayTimeout,
		KindFilesystem:          http.StatusInternalServerError,
		KindUnknown:             http.StatusInternalServerError,
	}
	for k, want := range cases {
		require.Equal(t, want, k.HTTPStatus(), k.String())
	}
}
