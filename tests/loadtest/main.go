package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"
)

const (
	baseURL      = "http://127.0.0.1:8090"
	numWorkers   = 50
	testDuration = 10 * time.Second
	numLeads     = 1000
)

var (
	ranges  = []string{"weekly", "monthly", "yearly"}
	metrics = []string{"views", "comparisons", "leads"}
	years   = []int{2024, 2025}
)

var httpClient = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== Clarity Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n\n", numWorkers, testDuration)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Cold start: every distinct key is fetched once, concurrent readers share the call.
	fmt.Println("\n--- Phase 1: Cold dashboard reads ---")
	runPhase(testDuration, doDashboardRead)

	fmt.Println("\n--- Phase 2: Mixed load (20% new leads, 80% reads) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		if rng.Float64() < 0.20 {
			return doPushLead(rng)
		}
		return doDashboardRead(rng)
	})

	fmt.Println("\n--- Phase 3: Invalidation churn (5% cache clears) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		if rng.Float64() < 0.05 {
			return do(http.MethodPost, "/cache/clear", nil, http.StatusNoContent)
		}
		return doDashboardRead(rng)
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Inc()
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-26s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 92))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-26s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + strings.Repeat("-", 92))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(max(totalOps, 1))*100, rps)
}

func doDashboardRead(rng *rand.Rand) result {
	r := rng.Float64()
	switch {
	case r < 0.15:
		return do(http.MethodGet, "/institution", nil, http.StatusOK)
	case r < 0.45:
		return do(http.MethodGet, "/dashboard/stats?range="+ranges[rng.Intn(len(ranges))], nil, http.StatusOK)
	case r < 0.70:
		path := fmt.Sprintf("/dashboard/charts?metric=%s&year=%d", metrics[rng.Intn(len(metrics))], years[rng.Intn(len(years))])
		return do(http.MethodGet, path, nil, http.StatusOK)
	case r < 0.90:
		return do(http.MethodGet, "/leads/recent", nil, http.StatusOK)
	default:
		return do(http.MethodGet, "/programs", nil, http.StatusOK)
	}
}

func doPushLead(rng *rand.Rand) result {
	id := rng.Intn(numLeads)
	body := map[string]any{
		"_id":         fmt.Sprintf("load-%d", id),
		"studentName": fmt.Sprintf("Student %d", id),
		"createdAt":   time.Now().UTC().Format(time.RFC3339),
		"programName": "Load Testing 101",
	}
	data, _ := json.Marshal(body)
	return do(http.MethodPost, "/leads", data, http.StatusAccepted)
}

func do(method, path string, body []byte, want int) result {
	endpoint := method + " " + strings.SplitN(path, "?", 2)[0]
	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return result{endpoint, 0, 0, true}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	start := time.Now()
	resp, err := httpClient.Do(req)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != want}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
