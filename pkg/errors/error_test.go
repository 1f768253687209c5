package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidParameter, "invalid parameter: %s", "test")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter: test", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeOrderNotFound, "order not found", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeOrderNotFound, err.Code)
	suite.Equal("order not found", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeOrderNotFound, cause, "order not found for symbol: %s", "BTCUSDT")
	suite.NotNil(err)
	suite.Equal(ErrCodeOrderNotFound, err.Code)
	suite.Equal("order not found for symbol: BTCUSDT", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeOrderNotFound, "order not found", cause)
	suite.Equal("[204] order not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeOrderNotFound, "order not found", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal(ErrCodeInvalidParameter, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeOrderNotFound, "order not found")
	err := Wrap(ErrCodeStrategyFailed, "strategy failed", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeStrategyFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromStandardError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.True(HasCode(err, ErrCodeInvalidParameter))
	suite.False(HasCode(err, ErrCodeOrderNotFound))
}

func (suite *ErrorTestSuite) TestIsError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeOrderNotFound, "order not found", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	var codedErr *Error
	suite.True(As(err, &codedErr))
	suite.Equal(ErrCodeInvalidParameter, codedErr.Code)
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidParameter)
	suite.Equal(ErrorCode(200), ErrCodeExchangeTransient)
	suite.Equal(ErrorCode(300), ErrCodePartialStrategyFailure)
	suite.Equal(ErrorCode(400), ErrCodeJournalUnavailable)
}

func (suite *ErrorTestSuite) TestValidationError() {
	err := NewValidationError("quantity", "-1", "must be a positive decimal")
	suite.Equal("quantity", err.Field)
	suite.Equal("[100] invalid quantity \"-1\": must be a positive decimal", err.Error())
	suite.True(IsValidationError(err))
	suite.Equal(ErrCodeInvalidParameter, GetCode(err))

	noValue := NewValidationErrorf("price", "", "required for %s orders", "LIMIT")
	suite.Equal("[100] invalid price: required for LIMIT orders", noValue.Error())
}

func (suite *ErrorTestSuite) TestIsValidationErrorWrapped() {
	err := fmt.Errorf("parse order: %w", NewValidationError("side", "UP", "must be BUY or SELL"))
	suite.True(IsValidationError(err))
	suite.False(IsValidationError(errors.New("standard error")))
	suite.False(IsValidationError(nil))
}

func (suite *ErrorTestSuite) TestExchangeError() {
	testCases := []struct {
		name string
		kind ExchangeErrorKind
		code ErrorCode
	}{
		{name: "transient", kind: ExchangeErrorTransient, code: ErrCodeExchangeTransient},
		{name: "rejected", kind: ExchangeErrorRejected, code: ErrCodeExchangeRejected},
		{name: "auth", kind: ExchangeErrorAuthFailure, code: ErrCodeExchangeAuthFailure},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			cause := errors.New("boom")
			err := NewExchangeError(tc.kind, -2019, "failed to place order", cause)
			suite.Equal(tc.code, err.ErrorCode())
			suite.Equal(tc.code, GetCode(err))
			suite.True(IsExchangeError(err))
			suite.Equal(tc.kind == ExchangeErrorTransient, IsTransient(err))
			suite.True(Is(err, cause))
		})
	}
}

func (suite *ErrorTestSuite) TestExchangeErrorString() {
	err := NewExchangeError(ExchangeErrorRejected, -2019, "failed to place order", errors.New("Margin is insufficient."))
	suite.Equal("[201] exchange error (REJECTED, code -2019): failed to place order: Margin is insufficient.", err.Error())

	err.RollbackError = errors.New("cancel timed out")
	suite.Contains(err.Error(), "(rollback failed: cancel timed out)")

	noCode := NewExchangeError(ExchangeErrorTransient, 0, "request timed out", nil)
	suite.Equal("[200] exchange error (TRANSIENT): request timed out", noCode.Error())
}

func (suite *ErrorTestSuite) TestPartialStrategyFailure() {
	err := NewPartialStrategyFailure("TWAP", 5, 3)
	suite.Equal("[300] TWAP strategy partially executed: 3 of 5 orders succeeded", err.Error())
	suite.True(IsPartialStrategyFailure(err))
	suite.False(IsPartialStrategyFailure(NewValidationError("side", "", "required")))
	suite.Equal(ErrCodePartialStrategyFailure, GetCode(err))
}
