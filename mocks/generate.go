package mocks

//go:generate mockgen -destination=./mock_trading_system_provider.go -package=mocks github.com/rxtech-lab/argo-orderbot/internal/trading/provider TradingSystemProvider
//go:generate mockgen -destination=./mock_log.go -package=mocks github.com/rxtech-lab/argo-orderbot/internal/log Log
