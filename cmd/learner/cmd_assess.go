package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"learnhub/progression"

	"github.com/spf13/cobra"
)

func runAssess(cmd *cobra.Command, args []string) error {
	moduleID, err := parseID(args[0], "module")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	coord, err := newCoordinator(ctx)
	if err != nil {
		return err
	}

	session, err := coord.OpenAssessment(ctx, moduleID)
	if err != nil {
		if errors.Is(err, progression.ErrAssessmentUnavailable) {
			return fmt.Errorf("finish every video in module %d first", moduleID)
		}
		return err
	}

	in := bufio.NewScanner(os.Stdin)
	for {
		res, err := answerAndSubmit(ctx, session, in)
		if err != nil {
			fmt.Printf("Submit failed: %v\n", err)
			if !confirm(in, "Retry submitting the same answers?") {
				return err
			}
			continue
		}
		printResult(session, res)
		if res.Passed {
			renderSnapshot(os.Stdout, coord.Snapshot(), nil)
			return nil
		}
		if !confirm(in, "Try again?") {
			return nil
		}
		if err := coord.RetryAssessment(ctx, session); err != nil {
			return err
		}
	}
}

// answerAndSubmit asks each question once, then submits. The countdown may
// submit on its own; whatever was answered by then is what gets sent.
func answerAndSubmit(ctx context.Context, session *progression.AssessmentSession, in *bufio.Scanner) (*progression.AssessmentResult, error) {
	if session.Status() == progression.StatusReady {
		if limit := session.Remaining(); limit > 0 {
			fmt.Printf("You have %d seconds.\n", limit)
			session.StartCountdown(ctx)
		}

		for i, q := range session.Questions() {
			if session.Status() != progression.StatusReady {
				fmt.Println("Time is up!")
				break
			}
			fmt.Printf("\nQ%d. %s\n", i+1, q.Text)
			for _, o := range q.Options {
				fmt.Printf("  %s) %s\n", o.Letter, o.Text)
			}
			for {
				fmt.Print("Answer (A-D, blank to skip): ")
				if !in.Scan() {
					break
				}
				if err := session.SelectAnswer(q.ID, in.Text()); err == nil || errors.Is(err, progression.ErrInvalidState) {
					break
				}
				fmt.Println("Please enter A, B, C or D.")
			}
		}
	}

	res, err := session.Submit(ctx)
	if err == nil && res == nil {
		// the countdown got there first
		res = session.Result()
	}
	return res, err
}

func printResult(session *progression.AssessmentSession, res *progression.AssessmentResult) {
	if res == nil {
		return
	}
	verdict := "FAILED"
	if res.Passed {
		verdict = "PASSED"
	}
	fmt.Printf("\n%s: %d/%d (%.1f%%)\n", verdict, res.ObtainedMarks, res.TotalMarks, res.Percentage)

	text := make(map[uint]string)
	for _, q := range session.Questions() {
		text[q.ID] = q.Text
	}
	for _, qr := range res.QuestionResults {
		mark := "x"
		if qr.IsCorrect {
			mark = "ok"
		}
		selected := qr.Selected
		if selected == "" {
			selected = "-"
		}
		fmt.Printf("  [%s] %s  you: %s  correct: %s\n", mark, text[qr.QuestionID], selected, qr.CorrectLetter)
	}
	if res.NextModuleUnlocked {
		fmt.Printf("Module %d unlocked!\n", res.NextModuleID)
	}
}

func confirm(in *bufio.Scanner, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	if !in.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(in.Text()), "y")
}
