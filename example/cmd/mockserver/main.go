// Standalone mock server for trying out the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/jsonpoll watch -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

type quote struct {
	Symbol string  `json:"symbol"`
	USD    float64 `json:"usd"`
}

type quotesResponse struct {
	Data struct {
		Prices    []quote   `json:"prices"`
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"data"`
}

func main() {
	fmt.Println("Mock quote server starting on :9999")
	fmt.Println("GET /quotes returns a random walk for BTC and ETH")
	fmt.Println("Requests need the header X-Api-Key: demo")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu     sync.Mutex
		prices = []quote{{"BTC", 65000}, {"ETH", 3200}}
	)

	http.HandleFunc("/quotes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "demo" {
			http.Error(w, `{"error":"missing api key"}`, http.StatusUnauthorized)
			return
		}

		// simulate small latency variance
		time.Sleep(time.Duration(5+rand.Intn(40)) * time.Millisecond)

		var resp quotesResponse
		mu.Lock()
		for i := range prices {
			prices[i].USD *= 1 + (rand.Float64()-0.5)/100
		}
		resp.Data.Prices = append([]quote(nil), prices...)
		mu.Unlock()
		resp.Data.UpdatedAt = time.Now().UTC()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
