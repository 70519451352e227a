package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"timetrack/internal/config"
	"timetrack/internal/queue"
	"timetrack/internal/store"
)

// Worker consumes scan events and maintains the redis recent-scan feed that
// the dashboard polls.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		log.Fatalf("redis not reachable at %s", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, "")

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for scan events...")
	for evt := range events {
		if err := queue.PushRecent(ctx, redisClient.Client, evt, cfg.RecentScansMax); err != nil {
			log.Printf("feed update failed for %s: %v", evt.RecordID, err)
			continue
		}
		log.Printf("scan %s: %s checked %s", evt.RecordID, evt.StudentID, evt.Type)
	}

	log.Println("worker stopped")
}
