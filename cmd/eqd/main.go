package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"github.com/chazlever/equeue"
	"github.com/chazlever/equeue/internal/logging"
	"github.com/chazlever/equeue/internal/uring"
)

func main() {
	var (
		bufStr     = flag.String("buffer", "16K", "Size of the payload arena (e.g. 16K, 1M)")
		cap        = flag.Int("capacity", 64, "Number of event slots")
		period     = flag.Int("tick", 1000, "Heartbeat period in milliseconds")
		verbose    = flag.Bool("v", false, "Verbose output")
		uringTimer = flag.Bool("uring-timer", false, "Drive dispatch from an IORING_OP_TIMEOUT background timer instead of polling (Linux only)")
	)
	flag.Parse()

	bufSize, err := parseSize(*bufStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid buffer size %q: %v\n", *bufStr, err)
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	opts := equeue.DefaultOptions()
	opts.Buffer = make([]byte, bufSize)
	opts.Capacity = *cap
	opts.Logger = logger

	q, err := equeue.CreateIn(opts)
	if err != nil {
		logger.Error("failed to create queue", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := q.Destroy(); err != nil {
			logger.Error("error destroying queue", "error", err)
		}
	}()

	logger.Info("queue created", "capacity", q.Capacity(), "buffer_bytes", bufSize)

	var beats int64
	id, err := q.CallEvery(int32(*period), func(unsafe.Pointer) {
		beats++
		logger.Info("heartbeat", "count", beats)
	})
	if err != nil {
		logger.Error("failed to arm heartbeat", "error", err)
		os.Exit(1)
	}
	logger.Debug("heartbeat armed", "id", id, "period_ms", *period)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		q.Break()
	}()

	if *uringTimer {
		runWithUringTimer(ctx, q, logger, &beats)
		return
	}

	for {
		err := q.Dispatch(-1)
		if ctx.Err() != nil {
			logger.Info("dispatch loop stopped", "heartbeats", beats)
			return
		}
		if err != nil {
			logger.Debug("dispatch returned", "error", err)
		}
		time.Sleep(0) // yield between idle wake-ups without busy-spinning
	}
}

// runWithUringTimer drives dispatch entirely from IORING_OP_TIMEOUT
// completions instead of the queue's own blocking Dispatch(-1) loop:
// each deadline change re-arms a single-shot ring timeout, and its
// completion runs a non-blocking Dispatch(0) drain. Falls back to the
// ordinary polling loop if the ring can't be created (non-Linux, or no
// io_uring support).
func runWithUringTimer(ctx context.Context, q *equeue.Queue, logger *logging.Logger, beats *int64) {
	drain := make(chan struct{}, 1)
	wake := func() {
		select {
		case drain <- struct{}{}:
		default:
		}
	}

	timer, err := uring.NewUringTimer(wake)
	if err != nil {
		logger.Warn("uring timer unavailable, falling back to polling dispatch", "error", err)
		for {
			derr := q.Dispatch(-1)
			if ctx.Err() != nil {
				logger.Info("dispatch loop stopped", "heartbeats", *beats)
				return
			}
			if derr != nil {
				logger.Debug("dispatch returned", "error", derr)
			}
		}
	}
	defer timer.Close()

	q.SetBackground(timer.Hook, nil)
	logger.Info("dispatch driven by io_uring background timer")

	for {
		select {
		case <-ctx.Done():
			logger.Info("dispatch loop stopped", "heartbeats", *beats)
			return
		case <-drain:
			if derr := q.Dispatch(0); derr != nil {
				logger.Debug("dispatch drain returned", "error", derr)
			}
		}
	}
}

// parseSize parses a size string like "16K", "1M", "512" (bytes).
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
