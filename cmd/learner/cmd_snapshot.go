package main

import (
	"fmt"
	"os"
	"strconv"

	"learnhub/progression"

	"github.com/spf13/cobra"
)

func runSnapshot(cmd *cobra.Command, args []string) error {
	coord, err := newCoordinator(cmd.Context())
	if err != nil {
		return err
	}
	renderSnapshot(os.Stdout, coord.Snapshot(), nil)
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	moduleID, err := parseID(args[0], "module")
	if err != nil {
		return err
	}
	videoID, err := parseID(args[1], "video")
	if err != nil {
		return err
	}

	coord, err := newCoordinator(cmd.Context())
	if err != nil {
		return err
	}
	unsubscribe := coord.Store().Subscribe(func(c progression.Change) {
		fmt.Printf("-- snapshot %s (seq %d)\n", c.Reason, c.Seq)
	})
	defer unsubscribe()

	res, err := coord.CompleteVideo(cmd.Context(), moduleID, videoID)
	if err != nil {
		return err
	}

	switch {
	case res.PendingSync:
		fmt.Println("Saved locally; the server could not be reached. Run `learner watch` to sync.")
	case res.Unlocked:
		fmt.Println("Video completed. Next video unlocked!")
	default:
		fmt.Println("Video completed.")
	}
	renderSnapshot(os.Stdout, coord.Snapshot(), pendingSet(coord.PendingVideos()))
	return nil
}

func parseID(s, label string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", label, s)
	}
	return uint(id), nil
}
