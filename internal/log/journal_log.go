package log

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InMemoryJournal opens a journal that lives only as long as the process.
const InMemoryJournal = ":memory:"

// EventFilter narrows GetEvents. Empty fields match everything.
type EventFilter struct {
	StrategyID string
	Type       EventType
	Symbol     string
}

// JournalLog implements the Log interface as an append-only audit journal.
// Events are stored in a DuckDB database and can be exported to Parquet.
type JournalLog struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	// mu serializes appends so ids follow arrival order.
	mu sync.Mutex
}

// NewJournalLog opens or creates the journal at path. Use InMemoryJournal for
// a throwaway journal.
func NewJournalLog(path string, logger *logger.Logger) (*JournalLog, error) {
	if path == "" {
		path = InMemoryJournal
	}

	if path != InMemoryJournal {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalUnavailable, "failed to create journal directory", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		logger.Error("Failed to open journal database", zap.Error(err))

		return nil, errors.Wrap(errors.ErrCodeJournalUnavailable, "failed to open journal database", err)
	}

	// Test connection to ensure database is properly initialized
	if err := db.Ping(); err != nil {
		logger.Error("Failed to connect to journal database", zap.Error(err))
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeJournalUnavailable, "failed to connect to journal database", err)
	}

	journal := &JournalLog{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := journal.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return journal, nil
}

// Log implements the Log interface. Write failures are reported to the
// process logger and otherwise swallowed.
func (l *JournalLog) Log(event Event) {
	if err := l.Append(event); err != nil && l != nil && l.logger != nil {
		l.logger.Warn("Failed to append audit event",
			zap.String("event", string(event.Type)),
			zap.Error(err),
		)
	}
}

// Append records an event and reports storage failures.
func (l *JournalLog) Append(event Event) error {
	if l == nil || l.db == nil {
		return errors.New(errors.ErrCodeJournalUnavailable, "journal or database is nil")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Get the next ID from the sequence
	var nextID int64

	err := l.db.QueryRow("SELECT nextval('event_id_seq')").Scan(&nextID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to get next ID from sequence", err)
	}

	var fieldsJSON string

	if len(event.Fields) > 0 {
		fieldsBytes, err := json.Marshal(event.Fields)
		if err != nil {
			return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to marshal fields to JSON", err)
		}

		fieldsJSON = string(fieldsBytes)
	}

	insertQuery := l.sq.
		Insert("events").
		Columns("id", "timestamp", "type", "strategy_id", "strategy_kind", "symbol", "side",
			"quantity", "price", "order_id", "error", "fields").
		Values(nextID, event.Timestamp, string(event.Type), event.StrategyID, event.StrategyKind, event.Symbol, event.Side,
			event.Quantity.String(), event.Price.String(), event.OrderID, event.Error, fieldsJSON).
		RunWith(l.db)

	if _, err := insertQuery.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to insert event", err)
	}

	return nil
}

// GetEvents returns the recorded events matching filter in arrival order.
func (l *JournalLog) GetEvents(filter EventFilter) ([]Event, error) {
	if l == nil || l.db == nil {
		return nil, errors.New(errors.ErrCodeJournalUnavailable, "journal or database is nil")
	}

	selectQuery := l.sq.
		Select("timestamp", "type", "strategy_id", "strategy_kind", "symbol", "side",
			"quantity", "price", "order_id", "error", "fields").
		From("events").
		OrderBy("id ASC")

	if filter.StrategyID != "" {
		selectQuery = selectQuery.Where(squirrel.Eq{"strategy_id": filter.StrategyID})
	}

	if filter.Type != "" {
		selectQuery = selectQuery.Where(squirrel.Eq{"type": string(filter.Type)})
	}

	if filter.Symbol != "" {
		selectQuery = selectQuery.Where(squirrel.Eq{"symbol": filter.Symbol})
	}

	rows, err := selectQuery.RunWith(l.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalUnavailable, "failed to query events", err)
	}
	defer rows.Close()

	var events []Event

	for rows.Next() {
		var event Event

		var eventType, quantity, price string

		var fieldsJSON sql.NullString

		err := rows.Scan(
			&event.Timestamp,
			&eventType,
			&event.StrategyID,
			&event.StrategyKind,
			&event.Symbol,
			&event.Side,
			&quantity,
			&price,
			&event.OrderID,
			&event.Error,
			&fieldsJSON,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalUnavailable, "failed to scan event", err)
		}

		event.Type = EventType(eventType)
		event.Quantity, _ = decimal.NewFromString(quantity)
		event.Price, _ = decimal.NewFromString(price)

		if fieldsJSON.Valid && fieldsJSON.String != "" {
			var fields map[string]string
			if err := json.Unmarshal([]byte(fieldsJSON.String), &fields); err != nil {
				return nil, errors.Wrap(errors.ErrCodeJournalUnavailable, "failed to unmarshal fields from JSON", err)
			}

			event.Fields = fields
		}

		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalUnavailable, "error iterating events", err)
	}

	return events, nil
}

// Export writes the journal to a Parquet file at path.
func (l *JournalLog) Export(path string) error {
	if l == nil || l.db == nil || l.logger == nil {
		return errors.New(errors.ErrCodeJournalUnavailable, "journal, database, or logger is nil")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to create directory", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	escaped := strings.ReplaceAll(path, "'", "''")

	_, err := l.db.Exec(fmt.Sprintf(`COPY events TO '%s' (FORMAT PARQUET)`, escaped))
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to export events to Parquet", err)
	}

	l.logger.Info("Successfully exported audit journal to Parquet file",
		zap.String("events", path),
	)

	return nil
}

// Close closes the database connection.
func (l *JournalLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}

	return l.db.Close()
}

// initialize creates the necessary tables for storing events.
func (l *JournalLog) initialize() error {
	_, err := l.db.Exec(`CREATE SEQUENCE IF NOT EXISTS event_id_seq`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalUnavailable, "failed to create sequence", err)
	}

	_, err = l.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id BIGINT PRIMARY KEY,
			timestamp TIMESTAMP,
			type TEXT,
			strategy_id TEXT,
			strategy_kind TEXT,
			symbol TEXT,
			side TEXT,
			quantity TEXT,
			price TEXT,
			order_id TEXT,
			error TEXT,
			fields TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalUnavailable, "failed to create events table", err)
	}

	return nil
}
