package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one simulated last-trade price.
type PriceTick struct {
	Symbol string
	Time   time.Time
	Price  decimal.Decimal
}

// DataGenerator generates realistic price paths for driving the simulated exchange.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how price paths are generated.
type GeneratorConfig struct {
	// Symbol is the trading symbol (e.g., "BTCUSDT")
	Symbol string
	// StartTime is the time of the first tick
	StartTime time.Time
	// Interval is the duration between ticks
	Interval time.Duration
	// Count is the number of ticks to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.001 = 0.1% typical move per tick)
	Volatility float64
	// Trend is the drift over the whole path (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// PricePrecision is the number of decimals prices are rounded to
	PricePrecision int32
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "BTCUSDT",
		StartTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:       time.Second,
		Count:          1000,
		InitialPrice:   50000.0,
		Volatility:     0.001, // 0.1% per tick
		Trend:          0.0,   // neutral
		PricePrecision: 2,
	}
}

// Generate creates a price path following a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) []PriceTick {
	ticks := make([]PriceTick, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		// Using Box-Muller transform for normal distribution
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(config.Count) // Distribute trend across ticks

		next := currentPrice * (1 + config.Volatility*z + drift)
		if next <= 0 {
			next = currentPrice * 0.99 // Prevent negative prices
		}

		ticks[i] = PriceTick{
			Symbol: config.Symbol,
			Time:   currentTime,
			Price:  decimal.NewFromFloat(next).Round(config.PricePrecision),
		}

		currentPrice = next
		currentTime = currentTime.Add(config.Interval)
	}

	return ticks
}

// GenerateMultiSymbol generates one path per symbol.
func (g *DataGenerator) GenerateMultiSymbol(symbols []string, baseConfig GeneratorConfig) map[string][]PriceTick {
	paths := make(map[string][]PriceTick, len(symbols))

	for _, symbol := range symbols {
		config := baseConfig
		config.Symbol = symbol
		// Vary initial price and volatility slightly per symbol
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		paths[symbol] = g.Generate(config)
	}

	return paths
}

// PriceRange returns the lowest and highest price of a path.
func PriceRange(ticks []PriceTick) (decimal.Decimal, decimal.Decimal) {
	if len(ticks) == 0 {
		return decimal.Zero, decimal.Zero
	}

	low, high := ticks[0].Price, ticks[0].Price
	for _, tick := range ticks[1:] {
		low = decimal.Min(low, tick.Price)
		high = decimal.Max(high, tick.Price)
	}

	return low, high
}
