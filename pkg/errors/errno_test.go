package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"

	"github.com/mentis-ai/mentis/pkg/errors"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		name     string
		service  int
		category int
		seq      int
		expected int
	}{
		{name: "common request", service: 0, category: 1, seq: 1, expected: 1001},
		{name: "backend network", service: 20, category: 10, seq: 2, expected: 2010002},
		{name: "zero", service: 0, category: 0, seq: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, errors.MakeCode(tt.service, tt.category, tt.seq))
		})
	}
}

func TestErrnoStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		errno    *errors.Errno
		wantHTTP int
		wantGRPC codes.Code
	}{
		{name: "not initialized", errno: errors.ErrNotInitialized, wantHTTP: http.StatusServiceUnavailable, wantGRPC: codes.Unavailable},
		{name: "upstream unavailable", errno: errors.ErrUpstreamUnavailable, wantHTTP: http.StatusBadGateway, wantGRPC: codes.Unavailable},
		{name: "unprocessable content", errno: errors.ErrUnprocessableContent, wantHTTP: http.StatusUnprocessableEntity, wantGRPC: codes.InvalidArgument},
		{name: "invalid param", errno: errors.ErrInvalidParam, wantHTTP: http.StatusBadRequest, wantGRPC: codes.InvalidArgument},
		{name: "configuration", errno: errors.ErrConfiguration, wantHTTP: http.StatusInternalServerError, wantGRPC: codes.FailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantHTTP, tt.errno.HTTPStatus())
			assert.Equal(t, tt.wantGRPC, tt.errno.GRPCStatus())
		})
	}
}

func TestWithMessageKeepsIdentity(t *testing.T) {
	e := errors.ErrInvalidParam.WithMessage("query is required")

	assert.Equal(t, errors.ErrInvalidParam.Code, e.Code)
	assert.Contains(t, e.Error(), "query is required")
	assert.True(t, stderrors.Is(e, errors.ErrInvalidParam))
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	e := errors.ErrUpstreamUnavailable.WithCause(cause)

	assert.Equal(t, cause, stderrors.Unwrap(e))
	assert.Contains(t, e.Error(), "connection refused")
	assert.True(t, stderrors.Is(e, errors.ErrUpstreamUnavailable))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, errors.FromError(nil))

	e := errors.FromError(errors.ErrNotFound)
	assert.Equal(t, errors.ErrNotFound, e)

	wrapped := errors.FromError(fmt.Errorf("boom"))
	assert.Equal(t, errors.ErrInternal.Code, wrapped.Code)
}

func TestLookup(t *testing.T) {
	e, ok := errors.Lookup(errors.ErrNotInitialized.Code)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrNotInitialized, e)

	_, ok = errors.Lookup(9999999)
	assert.False(t, ok)
}

func TestIsCodeAndGetCode(t *testing.T) {
	assert.True(t, errors.IsCode(errors.ErrTimeout, errors.ErrTimeout.Code))
	assert.False(t, errors.IsCode(fmt.Errorf("plain"), errors.ErrTimeout.Code))
	assert.Equal(t, -1, errors.GetCode(fmt.Errorf("plain")))
}
