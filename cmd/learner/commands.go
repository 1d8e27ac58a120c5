package main

import (
	"context"
	"fmt"

	"learnhub/config"
	"learnhub/gateway"
	"learnhub/progression"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	apiURL   string
	token    string
	userID   uint
	courseID uint

	rootCmd = &cobra.Command{
		Use:   "learner",
		Short: "Watch videos and take assessments against a learnhub course",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadConfig()
			if apiURL == "" {
				apiURL = config.AppConfig.APIBaseURL
			}
			if courseID == 0 {
				return fmt.Errorf("--course is required")
			}
			return nil
		},
		SilenceUsage: true,
	}

	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch the course snapshot and print what is unlocked",
		Args:  cobra.NoArgs,
		RunE:  runSnapshot, // Defined in cmd_snapshot.go
	}

	completeCmd = &cobra.Command{
		Use:   "complete [module_id] [video_id]",
		Short: "Mark a video as watched",
		Args:  cobra.ExactArgs(2),
		RunE:  runComplete, // Defined in cmd_snapshot.go
	}

	assessCmd = &cobra.Command{
		Use:   "assess [module_id]",
		Short: "Take the module assessment interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  runAssess, // Defined in cmd_assess.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Keep the snapshot in sync and retry pending completions until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runWatch, // Defined in cmd_watch.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (defaults to API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token for the learner")
	rootCmd.PersistentFlags().UintVar(&userID, "user", 0, "learner user id")
	rootCmd.PersistentFlags().UintVar(&courseID, "course", 0, "course id")

	rootCmd.AddCommand(snapshotCmd, completeCmd, assessCmd, watchCmd)
}

// newCoordinator wires the HTTP gateway into a coordinator and loads the
// first snapshot.
func newCoordinator(ctx context.Context) (*progression.Coordinator, error) {
	cfg := config.AppConfig
	gw := gateway.NewClient(apiURL, cfg.RequestTimeout)
	coord := progression.NewCoordinator(gw, progression.Learner{UserID: userID, Token: token}, courseID, progression.Options{
		RetryDelay:     cfg.SyncRetryDelay,
		MaxRetryDelay:  cfg.SyncMaxRetryDelay,
		RefreshDelay:   cfg.RefreshDelay,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err := coord.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load course %d: %w", courseID, err)
	}
	return coord, nil
}
