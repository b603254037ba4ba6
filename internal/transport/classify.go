package transport

import (
	"errors"
	"io"

	"github.com/valyala/fasthttp"

	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

var connectivityErrors = []error{
	fasthttp.ErrTimeout,
	fasthttp.ErrDialTimeout,
	fasthttp.ErrConnectionClosed,
	fasthttp.ErrNoFreeConns,
	io.EOF,
	io.ErrUnexpectedEOF,
}

// classify turns agent errors into a NetworkError when any of them means
// no response was received. Anything else is an internal failure.
func classify(errs []error) error {
	err := errors.Join(errs...)
	if isConnectivity(err) {
		return apperrors.NewNetworkError(err)
	}
	return apperrors.NewInternalError(err)
}

func isConnectivity(err error) bool {
	for _, target := range connectivityErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return apperrors.IsTransient(err)
}
