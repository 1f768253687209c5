package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
)

type StrategyKind string

const (
	StrategyKindMarket    StrategyKind = "MARKET"
	StrategyKindLimit     StrategyKind = "LIMIT"
	StrategyKindStopLimit StrategyKind = "STOP_LIMIT"
	StrategyKindOCO       StrategyKind = "OCO"
	StrategyKindTWAP      StrategyKind = "TWAP"
	StrategyKindGrid      StrategyKind = "GRID"
)

// StrategyKindFor maps a single order kind to its strategy kind.
func StrategyKindFor(kind OrderKind) StrategyKind {
	return StrategyKind(kind)
}

type StrategyStatus string

const (
	StrategyStatusCompleted StrategyStatus = "COMPLETED"
	StrategyStatusDegraded  StrategyStatus = "DEGRADED"
	StrategyStatusFailed    StrategyStatus = "FAILED"
	StrategyStatusCanceled  StrategyStatus = "CANCELED"
)

// LegFailure records one child order of a strategy that could not be placed.
type LegFailure struct {
	Index   int          `yaml:"index" json:"index"`
	Request OrderRequest `yaml:"request" json:"request"`
	Error   error        `yaml:"-" json:"-"`
}

// StrategyResult is the final report of a strategy run.
type StrategyResult struct {
	ID               string                           `yaml:"id" json:"id"`
	Kind             StrategyKind                     `yaml:"kind" json:"kind"`
	Symbol           string                           `yaml:"symbol" json:"symbol"`
	Status           StrategyStatus                   `yaml:"status" json:"status"`
	Handles          []OrderHandle                    `yaml:"handles" json:"handles"`
	Failures         []LegFailure                     `yaml:"failures" json:"failures"`
	Requested        int                              `yaml:"requested" json:"requested"`
	Succeeded        int                              `yaml:"succeeded" json:"succeeded"`
	ExecutedQuantity decimal.Decimal                  `yaml:"executed_quantity" json:"executed_quantity"`
	AvgPrice         optional.Option[decimal.Decimal] `yaml:"avg_price" json:"avg_price"`
	BuyCount         int                              `yaml:"buy_count" json:"buy_count"`
	SellCount        int                              `yaml:"sell_count" json:"sell_count"`
	SkippedCount     int                              `yaml:"skipped_count" json:"skipped_count"`
	// SkippedLevels holds grid prices that matched the reference price.
	SkippedLevels []decimal.Decimal `yaml:"skipped_levels" json:"skipped_levels"`
	TWAPState     TWAPState         `yaml:"twap_state,omitempty" json:"twap_state,omitempty"`
	StartedAt     time.Time         `yaml:"started_at" json:"started_at"`
	FinishedAt    time.Time         `yaml:"finished_at" json:"finished_at"`
	// Error is the cause for FAILED and CANCELED results.
	Error error `yaml:"-" json:"-"`
}

// Failed returns the number of legs that could not be placed.
func (r StrategyResult) Failed() int {
	return len(r.Failures)
}

// Duration returns the wall time the strategy ran for.
func (r StrategyResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err converts the result status into the error the caller should see.
// COMPLETED results return nil, DEGRADED a *errors.PartialStrategyFailure.
func (r StrategyResult) Err() error {
	switch r.Status {
	case StrategyStatusCompleted:
		return nil
	case StrategyStatusDegraded:
		return errors.NewPartialStrategyFailure(string(r.Kind), r.Requested, r.Succeeded)
	case StrategyStatusCanceled:
		if r.Error != nil {
			return errors.Wrapf(errors.ErrCodeStrategyCanceled, r.Error, "%s strategy canceled after %d of %d orders", r.Kind, r.Succeeded, r.Requested)
		}

		return errors.Newf(errors.ErrCodeStrategyCanceled, "%s strategy canceled after %d of %d orders", r.Kind, r.Succeeded, r.Requested)
	default:
		if r.Error != nil {
			return r.Error
		}

		if len(r.Failures) > 0 && r.Failures[0].Error != nil {
			return r.Failures[0].Error
		}

		return errors.Newf(errors.ErrCodeStrategyFailed, "%s strategy failed: 0 of %d orders succeeded", r.Kind, r.Requested)
	}
}
