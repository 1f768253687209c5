package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidOCO           ErrorCode = 103
	ErrCodeInvalidTWAPPlan      ErrorCode = 104
	ErrCodeInvalidGridPlan      ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// Exchange errors (200-299)
	ErrCodeExchangeTransient    ErrorCode = 200
	ErrCodeExchangeRejected     ErrorCode = 201
	ErrCodeExchangeAuthFailure  ErrorCode = 202
	ErrCodeUnsupportedOperation ErrorCode = 203
	ErrCodeOrderNotFound        ErrorCode = 204
	ErrCodeMarketPriceMissing   ErrorCode = 205

	// Strategy errors (300-399)
	ErrCodePartialStrategyFailure ErrorCode = 300
	ErrCodeStrategyFailed         ErrorCode = 301
	ErrCodeStrategyCanceled       ErrorCode = 302
	ErrCodeOCOInvariantViolated   ErrorCode = 303
	ErrCodeOCORollbackFailed      ErrorCode = 304

	// Journal errors (400-499)
	ErrCodeJournalUnavailable ErrorCode = 400
	ErrCodeJournalWriteFailed ErrorCode = 401
)
