package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"

	"github.com/nulzo/polly/internal/analytics"
	"github.com/nulzo/polly/internal/config"
	"github.com/nulzo/polly/internal/dispatch"
	"github.com/nulzo/polly/internal/platform/logger"
	"github.com/nulzo/polly/internal/probe"
	"github.com/nulzo/polly/internal/registry"
	"github.com/nulzo/polly/internal/server"
	"github.com/nulzo/polly/internal/store/cache"
	"github.com/nulzo/polly/internal/store/sqlite"
)

const (
	mockPort = 9091
	appPort  = 8081
)

var (
	streamChunk1 = []byte("data: {\"choices\":[{\"delta\":{\"content\":\"Bench\"}}]}\n\n")
	streamChunk2 = []byte("data: {\"choices\":[{\"delta\":{\"content\":\"mark\"}}]}\n\n")
	streamChunk3 = []byte("data: {\"choices\":[{\"delta\":{\"content\":\" safe\"}}]}\n\n")
	streamChunk4 = []byte("data: {\"choices\":[{\"delta\":{\"content\":\" response\"}}]}\n\n")
	streamDone   = []byte("data: [DONE]\n\n")

	structuredResp = []byte(`{"choices":[{"message":{"content":"","tool_calls":[{"id":"call_bench","type":"function","function":{"name":"output_formatter","arguments":"{\"tone\":\"positive\",\"entity\":\"benchmark\",\"word_count\":1,\"chat_response\":\"ok\"}"}}]},"finish_reason":"tool_calls"}]}`)
)

const attackBody = `{"provider": "openai", "model": "gpt-4o-mini", "apiKey": "sk-bench-12345", "messages": [{"role": "user", "content": "Hello"}]}`

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	structured := flag.Bool("structured", false, "Benchmark structured output instead of plain chat")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	os.Setenv("LOG_LEVEL", "error")
	logger.Initialize(logger.DefaultConfig())

	go startMockUpstream()

	fmt.Println("Starting gateway in-process...")
	shutdown, err := startGateway()
	if err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}
	defer shutdown()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	done := make(chan struct{})

	mode := "Streaming chat"
	path := "/v1/chat"
	if *structured {
		mode = "Structured output"
		path = "/v1/chat/structured_output"
	}
	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", mode, *duration, *rate)

	url := fmt.Sprintf("http://localhost:%d%s", appPort, path)

	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = url
		t.Body = []byte(attackBody)
		t.Header = http.Header{
			"Content-Type": []string{"application/json"},
		}
		return nil
	}

	if *chaos {
		fmt.Println("CHAOS MODE ENABLED: Starting Chaos Monkey sidecar...")
		chaosConcurrency := *rate / 10
		if chaosConcurrency < 5 {
			chaosConcurrency = 5
		}
		if chaosConcurrency > 50 {
			chaosConcurrency = 50
		}
		go startChaosMonkey(url, attackBody, chaosConcurrency, done)
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()

	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")

		uniqueErrors := make(map[string]bool)
		count := 0
		for _, msg := range metrics.Errors {
			if !uniqueErrors[msg] && count < 5 {
				fmt.Println(msg)

				uniqueErrors[msg] = true
				count++
			}
		}
	}
}

// startGateway assembles the full stack against the mock upstream: real
// dispatcher, real rate limiter, real ingestor over an in-memory database.
func startGateway() (func(), error) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Port: fmt.Sprintf("%d", appPort), Env: "production"},
		Defaults: config.DefaultsConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Store:    config.StoreConfig{DSN: "file:bench?mode=memory&cache=shared"},
		RateLimit: config.RateLimitConfig{
			RequestsPerSecond: 100000,
			Burst:             100000,
		},
	}

	repo, err := sqlite.NewStorage(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}

	reg := registry.New(registry.Provider{
		ID:      "openai",
		Name:    "OpenAI",
		Dialect: registry.DialectOpenAI,
		BaseURL: fmt.Sprintf("http://localhost:%d/v1", mockPort),
		Models:  []registry.Model{{ID: "gpt-4o-mini", Name: "GPT-4o Mini"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	ingestor := analytics.NewIngestor(logger.Get(), repo)
	ingestor.Start(ctx)

	srv := server.New(cfg, logger.Get(), server.Deps{
		Registry:   reg,
		Dispatcher: dispatch.New(reg, cfg),
		Prober:     probe.New(reg),
		Ingestor:   ingestor,
		Analytics:  analytics.NewService(repo, cache.NewMemoryCache()),
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", appPort),
		Handler: srv.Handler(),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Gateway failed: %v", err)
		}
	}()

	return func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		ingestor.Stop()
	}, nil
}

func startChaosMonkey(url, payload string, concurrency int, done chan struct{}) {
	fmt.Printf("Starting Chaos Monkey with %d concurrent disrupters (random disconnects 1-200ms)\n", concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{
				Transport: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 100,
					DisableKeepAlives:   false,
				},
			}

			for {
				select {
				case <-done:
					return
				default:
					// Randomly disconnect between 1ms and 200ms
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond

					ctx, cancel := context.WithTimeout(context.Background(), timeout)
					req, _ := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(payload))
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err == nil {
						resp.Body.Close()
					}
					cancel()

					// Sleep briefly to control request rate per goroutine
					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
}

func startMockUpstream() {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if val, ok := req["stream"].(bool); ok && val {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher, _ := w.(http.Flusher)

			chunks := [][]byte{streamChunk1, streamChunk2, streamChunk3, streamChunk4}
			for _, chunk := range chunks {
				time.Sleep(50 * time.Millisecond)
				w.Write(chunk)
				flusher.Flush()
			}
			w.Write(streamDone)
			flusher.Flush()
			return
		}

		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write(structuredResp)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil && resp.StatusCode == 200 {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("App timed out")
}
