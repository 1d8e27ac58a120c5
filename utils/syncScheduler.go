package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncTarget is the part of a progression coordinator the scheduler drives.
type SyncTarget interface {
	RetryPending(ctx context.Context) int
	Refresh(ctx context.Context) error
	PendingVideos() []uint
}

// logSync logs scheduler events with timestamp
func logSync(message string) {
	log.Printf("[SYNC-SCHEDULER %s] %s", time.Now().Format(time.RFC3339), message)
}

// RunPendingSync pushes every pending completion once more. It returns how
// many of them left the pending set.
func RunPendingSync(target SyncTarget, timeout time.Duration) int {
	pending := len(target.PendingVideos())
	if pending == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	remaining := target.RetryPending(ctx)
	synced := pending - remaining
	if synced < 0 {
		synced = 0
	}
	logSync(fmt.Sprintf("Retried %d pending completions, %d synced, %d still pending", pending, synced, remaining))
	return synced
}

// RunRefresh refetches the course snapshot so local state converges on the
// server even when nothing was pending.
func RunRefresh(target SyncTarget, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := target.Refresh(ctx); err != nil {
		logSync("Error refreshing snapshot: " + err.Error())
		return err
	}
	return nil
}

// InitializeSyncScheduler registers the retry and refresh jobs and starts
// the cron. The caller stops it with Stop().
func InitializeSyncScheduler(target SyncTarget, retryEvery, refreshEvery, timeout time.Duration) (*cron.Cron, error) {
	logSync("Initializing sync scheduler...")

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", retryEvery), func() {
		RunPendingSync(target, timeout)
	}); err != nil {
		return nil, fmt.Errorf("schedule pending sync: %w", err)
	}

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", refreshEvery), func() {
		_ = RunRefresh(target, timeout)
	}); err != nil {
		return nil, fmt.Errorf("schedule refresh: %w", err)
	}

	c.Start()
	logSync(fmt.Sprintf("Sync scheduler started - retry every %s, refresh every %s", retryEvery, refreshEvery))
	return c, nil
}
