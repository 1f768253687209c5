package tradingprovider

import (
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
)

// Binance status codes for authentication failures.
var authFailureCodes = map[int64]bool{
	-1022: true, // signature for this request is not valid
	-2014: true, // API-key format invalid
	-2015: true, // invalid API-key, IP, or permissions for action
}

// Binance status codes worth retrying.
var transientCodes = map[int64]bool{
	-1000: true, // unknown error while processing the request
	-1001: true, // internal error, unable to process
	-1003: true, // too many requests
	-1006: true, // unexpected response from the message bus
	-1007: true, // timeout waiting for response from backend server
	-1021: true, // timestamp outside of the recv window
}

// classifyError converts a go-binance failure into an ExchangeError.
// Errors that never got an API answer (transport, context) are transient.
func classifyError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var exchangeErr *errors.ExchangeError
	if errors.As(err, &exchangeErr) {
		return err
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// Code and message carry everything the APIError holds.
		return errors.NewExchangeError(kindForCode(apiErr.Code), apiErr.Code, operation+": "+apiErr.Message, nil)
	}

	return errors.NewExchangeError(errors.ExchangeErrorTransient, 0, operation, err)
}

func kindForCode(code int64) errors.ExchangeErrorKind {
	switch {
	case authFailureCodes[code]:
		return errors.ExchangeErrorAuthFailure
	case transientCodes[code]:
		return errors.ExchangeErrorTransient
	default:
		return errors.ExchangeErrorRejected
	}
}
