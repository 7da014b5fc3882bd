package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obsidian-labs/darkpool-api/internal/auth"
	"github.com/obsidian-labs/darkpool-api/internal/darkpool"
	"github.com/obsidian-labs/darkpool-api/internal/types"
)

const (
	minOrders     = 15
	maxOrders     = 150
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
)

var (
	markets = []string{"mkt_sol_150", "mkt_btc_100k", "mkt_eth_5k"}
	sides   = []string{types.SideYes, types.SideNo}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint.
// Workers record concurrently, hence the mutex.
type routeStats struct {
	mu         sync.Mutex
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// addFailure records a failed call
func (rs *routeStats) addFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the dark pool API
type simulationClient struct {
	baseURL   string
	authToken string
	wallet    string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient(wallet string) (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		wallet:  wallet,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"order":    {name: "Place Order"},
			"snapshot": {name: "Pool Snapshot"},
			"settle":   {name: "Settle Market"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
		"wallet":     sc.wallet,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// placeOrder submits an encrypted order. The "ciphertext" here is random
// bytes; the backend treats it as opaque either way.
func (sc *simulationClient) placeOrder(marketID, side string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["order"].addDuration(time.Since(start))
	}()

	amount := fmt.Sprintf("%.2f", 0.1+rand.Float64()*5)
	commitment, err := darkpool.ComputeCommitment(sc.wallet, marketID, amount)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, 48)
	rand.Read(ciphertext)

	payload := map[string]string{
		"market_id":        marketID,
		"side":             side,
		"encrypted_amount": base64.StdEncoding.EncodeToString(ciphertext),
		"commitment_hash":  commitment,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/darkpool/orders", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Place order response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("place order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                     `json:"success"`
		Data    types.PlaceOrderResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.OrderID == "" {
		return "", fmt.Errorf("no order ID in response: %s", string(respBody))
	}

	return result.Data.OrderID, nil
}

// getSnapshot retrieves the public pool snapshot for a market
func (sc *simulationClient) getSnapshot(marketID string) (*types.PoolSnapshot, error) {
	start := time.Now()
	defer func() {
		sc.stats["snapshot"].addDuration(time.Since(start))
	}()

	resp, err := sc.client.Get(fmt.Sprintf("%s/api/v1/darkpool/pool/%s", sc.baseURL, marketID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool               `json:"success"`
		Data    types.PoolSnapshot `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// settleMarket finalizes a market through the internal settlement route
func (sc *simulationClient) settleMarket(marketID string, outcome bool) (*types.SettlementResult, error) {
	start := time.Now()
	defer func() {
		sc.stats["settle"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(map[string]any{
		"market_id": marketID,
		"outcome":   outcome,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/internal/settlement", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Settle market response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("settle market failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                   `json:"success"`
		Data    types.SettlementResult `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond),
		)
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the dark pool walkthrough: authenticate, flood the pool with
// encrypted orders from several workers, read snapshots, then settle each
// market twice to demonstrate idempotent settlement.
func main() {
	wallet := fmt.Sprintf("SimWallet%d", rand.Intn(1_000_000))
	sc, err := newSimulationClient(wallet)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create simulation client")
	}

	numOrders := minOrders + rand.Intn(maxOrders-minOrders+1)
	log.Info().Int("orders", numOrders).Int("workers", numWorkers).Msg("starting dark pool simulation")

	jobs := make(chan int, numOrders)
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				marketID := markets[rand.Intn(len(markets))]
				side := sides[rand.Intn(len(sides))]
				if _, err := sc.placeOrder(marketID, side); err != nil {
					log.Error().Err(err).Str("market", marketID).Msg("place order failed")
					sc.stats["order"].addFailure()
				}
			}
		}()
	}

	for i := 0; i < numOrders; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, marketID := range markets {
		snap, err := sc.getSnapshot(marketID)
		if err != nil {
			log.Error().Err(err).Str("market", marketID).Msg("snapshot failed")
			sc.stats["snapshot"].addFailure()
			continue
		}
		log.Info().
			Str("market", marketID).
			Int64("yes", snap.YesCount).
			Int64("no", snap.NoCount).
			Msg("pool snapshot")
	}

	for _, marketID := range markets {
		outcome := rand.Intn(2) == 0

		result, err := sc.settleMarket(marketID, outcome)
		if err != nil {
			log.Error().Err(err).Str("market", marketID).Msg("settlement failed")
			sc.stats["settle"].addFailure()
			continue
		}
		log.Info().
			Str("market", marketID).
			Bool("outcome", result.Outcome).
			Int64("winners", result.Winners).
			Int64("losers", result.Losers).
			Msg("market settled")

		// Settle again: the duplicate call must report zero on both sides.
		repeat, err := sc.settleMarket(marketID, outcome)
		if err != nil {
			log.Error().Err(err).Str("market", marketID).Msg("repeat settlement failed")
			sc.stats["settle"].addFailure()
			continue
		}
		if repeat.Winners != 0 || repeat.Losers != 0 {
			log.Error().
				Str("market", marketID).
				Int64("winners", repeat.Winners).
				Int64("losers", repeat.Losers).
				Msg("repeat settlement was not idempotent")
		}
	}

	sc.printPerformanceStats()
}
