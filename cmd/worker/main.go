package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classroll/internal/config"
	"classroll/internal/queue"
	"classroll/internal/store"
)

// Worker consumes attendance messages and keeps the per-lesson live
// check-in counters in Redis current for dashboard reads.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classroll:scans")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeAttendance {
			continue
		}

		evt, err := queue.DecodeAttendance(msg)
		if err != nil {
			log.Printf("bad attendance message: %v", err)
			continue
		}

		if err := redisClient.BumpLiveAttendance(ctx, evt.LessonID); err != nil {
			log.Printf("bump live count for lesson %s failed: %v", evt.LessonID, err)
			continue
		}
		log.Printf("record %s: student %s counted for lesson %s", evt.RecordID, evt.StudentID, evt.LessonID)
	}

	log.Println("worker stopped")
}
