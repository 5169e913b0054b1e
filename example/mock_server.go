package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// ticker is the JSON document served by the mock server.
type ticker struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// StartMockTickerServer runs a mock price feed whose price follows a random
// walk. About one request in ten misbehaves (slow, 503 or truncated JSON)
// so that the error path can be seen.
// Call this in a goroutine before creating the poller.
func StartMockTickerServer(addr string) {
	var (
		mu    sync.Mutex
		price = 100.0
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/ticker", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		price += (rand.Float64() - 0.5) * 2
		current := price
		mu.Unlock()

		switch rand.Intn(30) {
		case 0:
			// slower than the example's request timeout
			time.Sleep(1500 * time.Millisecond)
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		case 2:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol":"DEMO","pri`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ticker{
			Symbol:    r.URL.Query().Get("symbol"),
			Price:     current,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			slog.Error("failed to encode ticker", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
