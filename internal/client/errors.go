package client

import (
	"errors"

	"github.com/hashicorp/go-set/v3"

	"github.com/charleshuang3/authsession/internal/contract"
)

// Failures that do not come from the server as a code. Domain outcomes are
// returned as contract.Code values.
var (
	ErrNetwork          = errors.New("NETWORK_ERROR")
	ErrServer           = errors.New("SERVER_ERROR")
	ErrDecode           = errors.New("DECODE_ERROR")
	ErrMissingAuthToken = errors.New("MISSING_AUTH_TOKEN")
)

var (
	// refresh outcomes after which the stored credential is worthless
	invalidatingCodes = set.From([]contract.Code{
		contract.CodeInvalid,
		contract.CodeUnauthorised,
		contract.CodePayloadTooLarge,
	})
)

// retryable reports whether err may go away on its own.
func retryable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrServer) ||
		errors.Is(err, ErrDecode)
}
