package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/waiting-room/internal/config"
	"github.com/vetdesk/waiting-room/internal/db"
)

// The simulator hammers the admission path with a deliberately small set of
// hot (client, pet) pairs so concurrent duplicate admissions actually
// collide, then drives admitted entries through start/complete/cancel.

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	HotPairs   int // size of the contended pair subset
	PairLimit  int
}

type pair struct {
	ClientID uuid.UUID
	PetID    uuid.UUID
}

type EntryPool struct {
	mu      sync.RWMutex
	entries []uuid.UUID
}

func (p *EntryPool) Add(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, id)
}

func (p *EntryPool) Random() (uuid.UUID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.entries) == 0 {
		return uuid.Nil, false
	}
	return p.entries[rand.Intn(len(p.entries))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	idx95 := len(latencies) * 95 / 100
	if idx95 >= len(latencies) {
		idx95 = len(latencies) - 1
	}
	p95 = latencies[idx95]
	return avg, p50, p95
}

func loadSimConfig() SimConfig {
	sim := SimConfig{
		APIBaseURL: "http://127.0.0.1:8080",
		Duration:   30 * time.Second,
		Workers:    16,
		HotPairs:   5,
		PairLimit:  500,
	}
	if v := os.Getenv("SIM_API_BASE_URL"); v != "" {
		sim.APIBaseURL = v
	}
	if v := os.Getenv("SIM_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			sim.Duration = d
		}
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			sim.Workers = n
		}
	}
	if v := os.Getenv("SIM_HOT_PAIRS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			sim.HotPairs = n
		}
	}
	return sim
}

func loadPairs(ctx context.Context, pool *pgxpool.Pool, limit int) ([]pair, error) {
	rows, err := pool.Query(ctx, `
		SELECT client_id, id FROM pets ORDER BY created_at LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.ClientID, &p.PetID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulate starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	sim := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	pairs, err := loadPairs(context.Background(), pool, sim.PairLimit)
	if err != nil {
		log.Fatalf("load pairs: %v", err)
	}
	if len(pairs) == 0 {
		log.Fatal("no pets found, run cmd/seed first")
	}
	if sim.HotPairs > len(pairs) {
		sim.HotPairs = len(pairs)
	}

	log.Printf("simulating: workers=%d duration=%s pairs=%d hot_pairs=%d",
		sim.Workers, sim.Duration, len(pairs), sim.HotPairs)

	client := &http.Client{Timeout: 10 * time.Second}
	entries := &EntryPool{}
	admits := &OperationMetrics{}
	transitions := &OperationMetrics{}

	runCtx, stop := context.WithTimeout(context.Background(), sim.Duration)
	defer stop()

	var wg sync.WaitGroup
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(runCtx, client, sim, pairs, entries, admits, transitions)
		}()
	}
	wg.Wait()

	report("admit", admits)
	report("transition", transitions)
}

func worker(ctx context.Context, client *http.Client, sim SimConfig, pairs []pair, entries *EntryPool, admits, transitions *OperationMetrics) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		roll := rand.Float64()
		switch {
		case roll < 0.5:
			// Half the admissions target the hot subset so the duplicate
			// guard gets exercised under real contention.
			var p pair
			if rand.Float64() < 0.8 {
				p = pairs[rand.Intn(sim.HotPairs)]
			} else {
				p = pairs[rand.Intn(len(pairs))]
			}
			admit(ctx, client, sim.APIBaseURL, p, entries, admits)
		default:
			id, ok := entries.Random()
			if !ok {
				continue
			}
			actions := []string{"start", "complete", "cancel"}
			transition(ctx, client, sim.APIBaseURL, id, actions[rand.Intn(len(actions))], transitions)
		}
	}
}

func admit(ctx context.Context, client *http.Client, baseURL string, p pair, entries *EntryPool, m *OperationMetrics) {
	body, _ := json.Marshal(map[string]string{
		"client_id":        p.ClientID.String(),
		"pet_id":           p.PetID.String(),
		"reason_for_visit": "load test visit",
	})

	start := time.Now()
	resp, err := post(ctx, client, baseURL+"/entries", body)
	latency := time.Since(start)
	if err != nil {
		m.Record(latency, false, false)
		return
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
			if id, err := uuid.Parse(created.ID); err == nil {
				entries.Add(id)
			}
		}
		m.Record(latency, true, false)
	case http.StatusConflict:
		m.Record(latency, false, true)
	default:
		m.Record(latency, false, false)
	}
}

func transition(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, action string, m *OperationMetrics) {
	body := []byte("{}")
	if action == "cancel" {
		body, _ = json.Marshal(map[string]string{"reason": "simulated cancellation"})
	}

	start := time.Now()
	resp, err := post(ctx, client, fmt.Sprintf("%s/entries/%s/%s", baseURL, id, action), body)
	latency := time.Since(start)
	if err != nil {
		m.Record(latency, false, false)
		return
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		m.Record(latency, true, false)
	case resp.StatusCode == http.StatusConflict:
		m.Record(latency, false, true)
	default:
		m.Record(latency, false, false)
	}
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Roles", "admin")
	return client.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func report(name string, m *OperationMetrics) {
	avg, p50, p95 := m.Stats()
	log.Printf("%s: total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s",
		name, atomic.LoadInt64(&m.Total), atomic.LoadInt64(&m.Success),
		atomic.LoadInt64(&m.Conflict), atomic.LoadInt64(&m.Error), avg, p50, p95)
}
