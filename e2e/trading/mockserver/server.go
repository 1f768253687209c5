// Package mockserver provides a mock Binance USD-M futures server for testing.
// It implements the REST endpoints the futures order provider calls.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Order represents a futures order held by the server.
type Order struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	TimeInForce   string
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	ExecutedQty   decimal.Decimal
	AvgPrice      decimal.Decimal
	Status        OrderStatus
	// Triggered is true once a STOP order's stop price has traded.
	Triggered  bool
	UpdateTime time.Time
}

// APIError is the error body Binance returns.
type APIError struct {
	Status  int    `json:"-"`
	Code    int64  `json:"code"`
	Message string `json:"msg"`
}

// ServerConfig holds configuration for the mock server.
type ServerConfig struct {
	// APIKey is the only key the server accepts. Empty accepts any key.
	APIKey string
	// FirstOrderID is the id of the first order placed.
	FirstOrderID int64
	// Prices maps symbols to their initial market price.
	Prices map[string]string
}

// MockFuturesServer provides a mock Binance futures server for testing.
type MockFuturesServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	apiKey     string
	orders     map[int64]*Order
	orderIDSeq int64
	prices     map[string]decimal.Decimal
	// failures are returned, in order, instead of handling the next order requests.
	failures []APIError
	// typeFailures reject the next orders of one type, e.g. "STOP".
	typeFailures map[string][]APIError
	// lostResponses book the next orders but answer with an error.
	lostResponses []APIError
	requests      map[string]int
}

// NewMockFuturesServer creates a new mock futures server.
func NewMockFuturesServer(config ServerConfig) *MockFuturesServer {
	server := &MockFuturesServer{
		mu:         sync.RWMutex{},
		httpServer: nil,
		listener:   nil,
		apiKey:     config.APIKey,
		orders:     make(map[int64]*Order),
		orderIDSeq: config.FirstOrderID,
		prices:     make(map[string]decimal.Decimal),
		failures:   make([]APIError, 0),
		requests:   make(map[string]int),

		typeFailures:  make(map[string][]APIError),
		lostResponses: make([]APIError, 0),
	}

	if server.orderIDSeq == 0 {
		server.orderIDSeq = 1000
	}

	for symbol, price := range config.Prices {
		server.prices[symbol] = decimal.RequireFromString(price)
	}

	return server
}

// Start starts the mock server on the given address.
// If address is empty or ":0", a random available port is used.
func (s *MockFuturesServer) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/fapi/v1/time", s.handleServerTime).Methods(http.MethodGet)
	router.HandleFunc("/fapi/v1/ticker/price", s.handleTickerPrice).Methods(http.MethodGet)

	orders := router.PathPrefix("/fapi/v1").Subrouter()
	orders.Use(s.authenticate)
	orders.HandleFunc("/order", s.handleCreateOrder).Methods(http.MethodPost)
	orders.HandleFunc("/order", s.handleGetOrder).Methods(http.MethodGet)
	orders.HandleFunc("/order", s.handleCancelOrder).Methods(http.MethodDelete)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the mock server.
func (s *MockFuturesServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the base URL for the server.
func (s *MockFuturesServer) BaseURL() string {
	if s.listener == nil {
		return ""
	}

	return "http://" + s.listener.Addr().String()
}

// SetPrice moves the market and fills every resting order the new price reaches.
func (s *MockFuturesServer) SetPrice(symbol string, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	market := decimal.RequireFromString(price)
	s.prices[symbol] = market

	for _, order := range s.orders {
		if order.Symbol != symbol || order.Status != OrderStatusNew {
			continue
		}

		s.match(order, market)
	}
}

// FailNext makes the next order requests fail with the given errors, in order.
func (s *MockFuturesServer) FailNext(failures ...APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = append(s.failures, failures...)
}

// FailNextOfType makes the next orders of orderType fail with the given errors.
func (s *MockFuturesServer) FailNextOfType(orderType string, failures ...APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.typeFailures[orderType] = append(s.typeFailures[orderType], failures...)
}

// LoseNextResponse books the next orders as usual and then answers them with
// the given errors, as if the response was lost on the way back.
func (s *MockFuturesServer) LoseNextResponse(failures ...APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lostResponses = append(s.lostResponses, failures...)
}

// GetOrder returns a copy of an order by ID.
func (s *MockFuturesServer) GetOrder(orderID int64) *Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil
	}

	clone := *order

	return &clone
}

// Orders returns copies of all orders.
func (s *MockFuturesServer) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Order, 0, len(s.orders))
	for _, order := range s.orders {
		result = append(result, *order)
	}

	return result
}

// Requests returns how many requests reached a route, keyed by "METHOD /path".
func (s *MockFuturesServer) Requests(method, path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests[method+" "+path]
}

// Middleware

func (s *MockFuturesServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()

		if s.apiKey != "" && r.Header.Get("X-MBX-APIKEY") != s.apiKey {
			writeError(w, APIError{Status: http.StatusUnauthorized, Code: -2015, Message: "Invalid API-key, IP, or permissions for action."})

			return
		}

		if r.FormValue("signature") == "" {
			writeError(w, APIError{Status: http.StatusBadRequest, Code: -1022, Message: "Signature for this request is not valid."})

			return
		}

		next.ServeHTTP(w, r)
	})
}

// REST API Handlers

// handleServerTime handles GET /fapi/v1/time
func (s *MockFuturesServer) handleServerTime(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]int64{"serverTime": time.Now().UnixMilli()})
}

// handleTickerPrice handles GET /fapi/v1/ticker/price
func (s *MockFuturesServer) handleTickerPrice(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type priceResponse struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
		Time   int64  `json:"time"`
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol != "" {
		price, ok := s.prices[symbol]
		if !ok {
			writeError(w, APIError{Status: http.StatusBadRequest, Code: -1121, Message: "Invalid symbol."})

			return
		}

		writeJSON(w, priceResponse{Symbol: symbol, Price: price.StringFixed(2), Time: time.Now().UnixMilli()})

		return
	}

	response := make([]priceResponse, 0, len(s.prices))
	for sym, price := range s.prices {
		response = append(response, priceResponse{Symbol: sym, Price: price.StringFixed(2), Time: time.Now().UnixMilli()})
	}

	writeJSON(w, response)
}

// handleCreateOrder handles POST /fapi/v1/order
func (s *MockFuturesServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.failures) > 0 {
		failure := s.failures[0]
		s.failures = s.failures[1:]
		writeError(w, failure)

		return
	}

	order, apiErr := s.parseOrder(r)
	if apiErr != nil {
		writeError(w, *apiErr)

		return
	}

	if pending := s.typeFailures[order.Type]; len(pending) > 0 {
		s.typeFailures[order.Type] = pending[1:]
		writeError(w, pending[0])

		return
	}

	market, ok := s.prices[order.Symbol]
	if !ok {
		writeError(w, APIError{Status: http.StatusBadRequest, Code: -1121, Message: "Invalid symbol."})

		return
	}

	if s.byClientOrderID(order.Symbol, order.ClientOrderID) != nil {
		writeError(w, APIError{Status: http.StatusBadRequest, Code: -4116, Message: "ClientOrderId is duplicated."})

		return
	}

	s.orderIDSeq++
	order.OrderID = s.orderIDSeq
	s.orders[order.OrderID] = order
	s.match(order, market)

	if len(s.lostResponses) > 0 {
		failure := s.lostResponses[0]
		s.lostResponses = s.lostResponses[1:]
		writeError(w, failure)

		return
	}

	writeJSON(w, orderResponse(order))
}

// handleGetOrder handles GET /fapi/v1/order
func (s *MockFuturesServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, apiErr := s.lookup(r)
	if apiErr != nil {
		writeError(w, *apiErr)

		return
	}

	writeJSON(w, orderResponse(order))
}

// handleCancelOrder handles DELETE /fapi/v1/order
func (s *MockFuturesServer) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, apiErr := s.lookup(r)
	if apiErr != nil {
		writeError(w, *apiErr)

		return
	}

	if order.Status != OrderStatusNew {
		writeError(w, APIError{Status: http.StatusBadRequest, Code: -2011, Message: "Unknown order sent."})

		return
	}

	order.Status = OrderStatusCanceled
	order.UpdateTime = time.Now()

	writeJSON(w, orderResponse(order))
}

// Helpers

func (s *MockFuturesServer) parseOrder(r *http.Request) (*Order, *APIError) {
	order := &Order{
		OrderID:       0,
		ClientOrderID: r.FormValue("newClientOrderId"),
		Symbol:        r.FormValue("symbol"),
		Side:          r.FormValue("side"),
		Type:          r.FormValue("type"),
		TimeInForce:   r.FormValue("timeInForce"),
		Quantity:      decimal.Zero,
		Price:         decimal.Zero,
		StopPrice:     decimal.Zero,
		ExecutedQty:   decimal.Zero,
		AvgPrice:      decimal.Zero,
		Status:        OrderStatusNew,
		Triggered:     false,
		UpdateTime:    time.Now(),
	}

	if order.ClientOrderID == "" {
		order.ClientOrderID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	if order.Side != "BUY" && order.Side != "SELL" {
		return nil, &APIError{Status: http.StatusBadRequest, Code: -1117, Message: "Invalid side."}
	}

	quantity, err := decimal.NewFromString(r.FormValue("quantity"))
	if err != nil || !quantity.IsPositive() {
		return nil, &APIError{Status: http.StatusBadRequest, Code: -4003, Message: "Quantity less than or equal to zero."}
	}

	order.Quantity = quantity

	switch order.Type {
	case "MARKET":
	case "LIMIT", "STOP":
		price, err := decimal.NewFromString(r.FormValue("price"))
		if err != nil || !price.IsPositive() {
			return nil, &APIError{Status: http.StatusBadRequest, Code: -4014, Message: "Price not increased by tick size."}
		}

		order.Price = price

		if order.Type == "STOP" {
			stop, err := decimal.NewFromString(r.FormValue("stopPrice"))
			if err != nil || !stop.IsPositive() {
				return nil, &APIError{Status: http.StatusBadRequest, Code: -1102, Message: "Mandatory parameter 'stopPrice' was not sent, was empty/null, or malformed."}
			}

			order.StopPrice = stop
		}
	default:
		return nil, &APIError{Status: http.StatusBadRequest, Code: -1116, Message: "Invalid orderType."}
	}

	return order, nil
}

func (s *MockFuturesServer) lookup(r *http.Request) (*Order, *APIError) {
	if r.FormValue("orderId") == "" && r.FormValue("origClientOrderId") != "" {
		order := s.byClientOrderID(r.FormValue("symbol"), r.FormValue("origClientOrderId"))
		if order == nil {
			return nil, &APIError{Status: http.StatusBadRequest, Code: -2013, Message: "Order does not exist."}
		}

		return order, nil
	}

	orderID, err := strconv.ParseInt(r.FormValue("orderId"), 10, 64)
	if err != nil {
		return nil, &APIError{Status: http.StatusBadRequest, Code: -1102, Message: "Mandatory parameter 'orderId' was not sent, was empty/null, or malformed."}
	}

	order, ok := s.orders[orderID]
	if !ok || order.Symbol != r.FormValue("symbol") {
		return nil, &APIError{Status: http.StatusBadRequest, Code: -2013, Message: "Order does not exist."}
	}

	return order, nil
}

// byClientOrderID returns the order of symbol with clientOrderID, or nil.
// Callers hold the lock.
func (s *MockFuturesServer) byClientOrderID(symbol, clientOrderID string) *Order {
	for _, order := range s.orders {
		if order.Symbol == symbol && order.ClientOrderID == clientOrderID {
			return order
		}
	}

	return nil
}

// match fills order if market reaches it. Callers hold the lock.
func (s *MockFuturesServer) match(order *Order, market decimal.Decimal) {
	buy := order.Side == "BUY"

	switch order.Type {
	case "MARKET":
		s.fill(order, market)
	case "LIMIT":
		if (buy && market.LessThanOrEqual(order.Price)) || (!buy && market.GreaterThanOrEqual(order.Price)) {
			s.fill(order, order.Price)
		}
	case "STOP":
		if !order.Triggered {
			order.Triggered = (buy && market.GreaterThanOrEqual(order.StopPrice)) || (!buy && market.LessThanOrEqual(order.StopPrice))
		}

		if order.Triggered && ((buy && market.LessThanOrEqual(order.Price)) || (!buy && market.GreaterThanOrEqual(order.Price))) {
			s.fill(order, order.Price)
		}
	}
}

func (s *MockFuturesServer) fill(order *Order, price decimal.Decimal) {
	order.Status = OrderStatusFilled
	order.ExecutedQty = order.Quantity
	order.AvgPrice = price
	order.UpdateTime = time.Now()
}

// orderResponse renders an order the way /fapi/v1/order does.
func orderResponse(order *Order) map[string]any {
	return map[string]any{
		"orderId":       order.OrderID,
		"clientOrderId": order.ClientOrderID,
		"symbol":        order.Symbol,
		"side":          order.Side,
		"positionSide":  "BOTH",
		"type":          order.Type,
		"origType":      order.Type,
		"timeInForce":   order.TimeInForce,
		"status":        string(order.Status),
		"origQty":       order.Quantity.String(),
		"executedQty":   order.ExecutedQty.String(),
		"cumQuote":      order.ExecutedQty.Mul(order.AvgPrice).String(),
		"price":         order.Price.String(),
		"avgPrice":      order.AvgPrice.String(),
		"stopPrice":     order.StopPrice.String(),
		"reduceOnly":    false,
		"closePosition": false,
		"workingType":   "CONTRACT_PRICE",
		"priceProtect":  false,
		"time":          order.UpdateTime.UnixMilli(),
		"updateTime":    order.UpdateTime.UnixMilli(),
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, apiErr APIError) {
	status := apiErr.Status
	if status == 0 {
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErr)
}
