package log

import (
	"github.com/rxtech-lab/argo-orderbot/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLog writes audit events as structured log lines.
type ZapLog struct {
	logger *logger.Logger
}

// NewZapLog creates a sink writing to the given logger.
func NewZapLog(logger *logger.Logger) *ZapLog {
	return &ZapLog{logger: logger}
}

// Log implements Log.
func (l *ZapLog) Log(event Event) {
	if l == nil || l.logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("event", string(event.Type)),
	}

	if event.StrategyID != "" {
		fields = append(fields, zap.String("strategy_id", event.StrategyID))
	}

	if event.StrategyKind != "" {
		fields = append(fields, zap.String("strategy", event.StrategyKind))
	}

	if event.Symbol != "" {
		fields = append(fields, zap.String("symbol", event.Symbol))
	}

	if event.Side != "" {
		fields = append(fields, zap.String("side", event.Side))
	}

	if !event.Quantity.IsZero() {
		fields = append(fields, zap.String("quantity", event.Quantity.String()))
	}

	if !event.Price.IsZero() {
		fields = append(fields, zap.String("price", event.Price.String()))
	}

	if event.OrderID != "" {
		fields = append(fields, zap.String("order_id", event.OrderID))
	}

	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}

	for key, value := range event.Fields {
		fields = append(fields, zap.String(key, value))
	}

	l.logger.Log(levelFor(event), "audit", fields...)
}

func levelFor(event Event) zapcore.Level {
	switch {
	case event.Type == EventRollbackFailed:
		return zapcore.ErrorLevel
	case event.Error != "":
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
