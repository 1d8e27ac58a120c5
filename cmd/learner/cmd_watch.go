package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"learnhub/config"
	"learnhub/progression"
	"learnhub/utils"

	"github.com/spf13/cobra"
)

func runWatch(cmd *cobra.Command, args []string) error {
	coord, err := newCoordinator(cmd.Context())
	if err != nil {
		return err
	}
	renderSnapshot(os.Stdout, coord.Snapshot(), pendingSet(coord.PendingVideos()))

	unsubscribe := coord.Store().Subscribe(func(c progression.Change) {
		fmt.Printf("\n-- snapshot %s (seq %d)\n", c.Reason, c.Seq)
		renderSnapshot(os.Stdout, coord.Snapshot(), pendingSet(coord.PendingVideos()))
	})
	defer unsubscribe()

	cfg := config.AppConfig
	scheduler, err := utils.InitializeSyncScheduler(coord, cfg.SyncRetryDelay, cfg.SyncRefreshInterval, cfg.RequestTimeout)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("Stopping watch...")
	return nil
}
