package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type JournalLogTestSuite struct {
	suite.Suite
	logger  *logger.Logger
	journal *JournalLog
}

func TestJournalLogSuite(t *testing.T) {
	suite.Run(t, new(JournalLogTestSuite))
}

func (suite *JournalLogTestSuite) SetupSuite() {
	logger, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.logger = logger
}

func (suite *JournalLogTestSuite) SetupTest() {
	journal, err := NewJournalLog(InMemoryJournal, suite.logger)
	suite.Require().NoError(err)
	suite.journal = journal
}

func (suite *JournalLogTestSuite) TearDownTest() {
	suite.Require().NoError(suite.journal.Close())
}

func (suite *JournalLogTestSuite) seed() {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []Event{
		{Timestamp: now, Type: EventStrategyStarted, StrategyID: "twap-1", StrategyKind: "TWAP", Symbol: "BTCUSDT"},
		{
			Timestamp:    now.Add(time.Second),
			Type:         EventSlicePlaced,
			StrategyID:   "twap-1",
			StrategyKind: "TWAP",
			Symbol:       "BTCUSDT",
			Side:         "BUY",
			Quantity:     decimal.RequireFromString("0.25"),
			Price:        decimal.RequireFromString("50000.5"),
			OrderID:      "11",
			Fields:       map[string]string{"slice": "1"},
		},
		{
			Timestamp:  now.Add(2 * time.Second),
			Type:       EventSliceFailed,
			StrategyID: "twap-1",
			Symbol:     "BTCUSDT",
			Error:      "insufficient margin",
			Fields:     map[string]string{"slice": "2"},
		},
		{Timestamp: now.Add(3 * time.Second), Type: EventOrderPlaced, StrategyID: "market-1", Symbol: "ETHUSDT", OrderID: "12"},
	}

	for _, event := range events {
		suite.Require().NoError(suite.journal.Append(event))
	}
}

func (suite *JournalLogTestSuite) TestAppendAndGetEvents() {
	suite.seed()

	events, err := suite.journal.GetEvents(EventFilter{})
	suite.Require().NoError(err)
	suite.Require().Len(events, 4)

	placed := events[1]
	suite.Equal(EventSlicePlaced, placed.Type)
	suite.Equal("twap-1", placed.StrategyID)
	suite.Equal("BUY", placed.Side)
	suite.True(decimal.RequireFromString("0.25").Equal(placed.Quantity))
	suite.True(decimal.RequireFromString("50000.5").Equal(placed.Price))
	suite.Equal("11", placed.OrderID)
	suite.Equal(map[string]string{"slice": "1"}, placed.Fields)

	suite.Equal("insufficient margin", events[2].Error)
	suite.Nil(events[0].Fields)
}

func (suite *JournalLogTestSuite) TestGetEventsFilters() {
	suite.seed()

	tests := []struct {
		name          string
		filter        EventFilter
		expectedCount int
	}{
		{name: "by strategy", filter: EventFilter{StrategyID: "twap-1"}, expectedCount: 3},
		{name: "by type", filter: EventFilter{Type: EventSliceFailed}, expectedCount: 1},
		{name: "by symbol", filter: EventFilter{Symbol: "ETHUSDT"}, expectedCount: 1},
		{name: "combined", filter: EventFilter{StrategyID: "twap-1", Type: EventOrderPlaced}, expectedCount: 0},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			events, err := suite.journal.GetEvents(tt.filter)
			suite.Require().NoError(err)
			suite.Len(events, tt.expectedCount)
		})
	}
}

func (suite *JournalLogTestSuite) TestLogSwallowsErrors() {
	var journal *JournalLog
	suite.NotPanics(func() { journal.Log(Event{Type: EventOrderPlaced}) })

	err := journal.Append(Event{Type: EventOrderPlaced})
	suite.True(errors.HasCode(err, errors.ErrCodeJournalUnavailable))
}

func (suite *JournalLogTestSuite) TestExportParquet() {
	suite.seed()

	path := filepath.Join(suite.T().TempDir(), "audit", "events.parquet")
	suite.Require().NoError(suite.journal.Export(path))

	info, err := os.Stat(path)
	suite.Require().NoError(err)
	suite.Positive(info.Size())
}

func (suite *JournalLogTestSuite) TestFileJournalPersists() {
	path := filepath.Join(suite.T().TempDir(), "journal", "orderbot.duckdb")

	journal, err := NewJournalLog(path, suite.logger)
	suite.Require().NoError(err)
	suite.Require().NoError(journal.Append(Event{Type: EventOrderPlaced, OrderID: "1"}))
	suite.Require().NoError(journal.Close())

	reopened, err := NewJournalLog(path, suite.logger)
	suite.Require().NoError(err)

	defer reopened.Close()

	suite.Require().NoError(reopened.Append(Event{Type: EventOrderCanceled, OrderID: "1"}))

	events, err := reopened.GetEvents(EventFilter{})
	suite.Require().NoError(err)
	suite.Require().Len(events, 2)
	suite.Equal(EventOrderPlaced, events[0].Type)
	suite.Equal(EventOrderCanceled, events[1].Type)
}
