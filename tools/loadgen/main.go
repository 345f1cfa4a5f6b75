package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/logpipe/internal/client"
	"github.com/user/logpipe/internal/domain"
)

var levels = []domain.Level{domain.LevelDebug, domain.LevelInfo, domain.LevelWarn, domain.LevelError}

func main() {
	targetURL := flag.String("url", "http://localhost:3010/api/logs", "Target URL for ingestion")
	concurrency := flag.Int("c", 10, "Number of concurrent producers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	eps := flag.Int("eps", 1000, "Events per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, EPS: %d", *concurrency, *duration, *eps)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*eps), 100) // Allow bursts up to 100

	var wg sync.WaitGroup
	clients := make([]*client.Client, *concurrency)

	for i := 0; i < *concurrency; i++ {
		c, err := client.New(client.Config{
			ServerURL:     *targetURL,
			Source:        fmt.Sprintf("loadgen-%d", i),
			FlushInterval: 500 * time.Millisecond,
			Logger:        slog.Default(),
		})
		if err != nil {
			log.Fatalf("failed to create client %d: %v", i, err)
		}
		clients[i] = c

		wg.Add(1)
		go func(workerID int, c *client.Client) {
			defer wg.Done()
			seq := 0
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				seq++
				c.Log(levels[rand.Intn(len(levels))],
					fmt.Sprintf("load test event %d from worker %d", seq, workerID),
					map[string]any{"worker": workerID, "seq": seq})
			}
		}(i, c)
	}

	wg.Wait()

	var delivered, dropped, evicted uint64
	for _, c := range clients {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
		c.Flush(flushCtx)
		flushCancel()
		if err := c.Close(); err != nil {
			log.Printf("client close error: %v", err)
		}
		stats := c.Stats()
		delivered += stats.Delivered
		dropped += stats.Dropped
		evicted += stats.Evicted
	}

	log.Println("Load test finished.")
	log.Printf("Delivered: %d", delivered)
	log.Printf("Dropped (rejected): %d", dropped)
	log.Printf("Evicted (buffer overflow): %d", evicted)
	log.Printf("Actual EPS: %.2f", float64(delivered)/(*duration).Seconds())
}
