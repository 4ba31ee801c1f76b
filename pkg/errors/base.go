package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:     0,
	HTTP:     http.StatusOK,
	GRPCCode: codes.OK,
	Msg:      "Success",
})

// Common errors shared by all services.
var (
	// ErrInvalidParam indicates a malformed or missing request parameter.
	ErrInvalidParam = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:     http.StatusBadRequest,
		GRPCCode: codes.InvalidArgument,
		Msg:      "Invalid parameter",
	})

	// ErrNotFound indicates a missing resource.
	ErrNotFound = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryResource, 1),
		HTTP:     http.StatusNotFound,
		GRPCCode: codes.NotFound,
		Msg:      "Resource not found",
	})

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryInternal, 1),
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Msg:      "Internal server error",
	})

	// ErrCache indicates a cache layer failure.
	ErrCache = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryCache, 1),
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Msg:      "Cache error",
	})

	// ErrTimeout indicates a request exceeded its deadline.
	ErrTimeout = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryTimeout, 1),
		HTTP:     http.StatusGatewayTimeout,
		GRPCCode: codes.DeadlineExceeded,
		Msg:      "Request timed out",
	})

	// ErrConfiguration indicates invalid service configuration.
	ErrConfiguration = Register(&Errno{
		Code:     MakeCode(ServiceCommon, CategoryConfig, 1),
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.FailedPrecondition,
		Msg:      "Invalid configuration",
	})
)

// Backend errors.
var (
	// ErrNotInitialized indicates a capability was used before load.
	ErrNotInitialized = Register(&Errno{
		Code:     MakeCode(ServiceBackend, CategoryNetwork, 1),
		HTTP:     http.StatusServiceUnavailable,
		GRPCCode: codes.Unavailable,
		Msg:      "Service not initialized",
	})

	// ErrUpstreamUnavailable indicates an unreachable collaborator
	// (vector database, generation backend, OCR or speech service).
	ErrUpstreamUnavailable = Register(&Errno{
		Code:     MakeCode(ServiceBackend, CategoryNetwork, 2),
		HTTP:     http.StatusBadGateway,
		GRPCCode: codes.Unavailable,
		Msg:      "Upstream service unavailable",
	})

	// ErrUnprocessableContent indicates an upstream produced no usable
	// content, e.g. OCR extracted no text from a document.
	ErrUnprocessableContent = Register(&Errno{
		Code:     MakeCode(ServiceBackend, CategoryRequest, 1),
		HTTP:     http.StatusUnprocessableEntity,
		GRPCCode: codes.InvalidArgument,
		Msg:      "Unprocessable content",
	})

	// ErrIndexing indicates a chunk indexing failure.
	ErrIndexing = Register(&Errno{
		Code:     MakeCode(ServiceBackend, CategoryInternal, 1),
		HTTP:     http.StatusInternalServerError,
		GRPCCode: codes.Internal,
		Msg:      "Document indexing failed",
	})
)
