package main

import (
	"fmt"
	"io"
	"strings"

	"learnhub/progression"
)

// renderSnapshot prints one line per module and video with its lock state.
// pending marks completions that have not reached the server yet.
func renderSnapshot(w io.Writer, snap *progression.Snapshot, pending map[uint]bool) {
	if snap == nil {
		fmt.Fprintln(w, "no snapshot loaded")
		return
	}
	purchased := "not purchased"
	if snap.IsPurchased {
		purchased = "purchased"
	}
	fmt.Fprintf(w, "course %d (%s)\n", snap.CourseID, purchased)

	for i, ma := range progression.Evaluate(snap) {
		m := snap.Modules[i]
		state := "open"
		if ma.Locked {
			state = "locked"
		}
		fmt.Fprintf(w, "  module %d %q [%s]\n", ma.ModuleID, m.Title, state)

		for j, v := range ma.Videos {
			var flags []string
			switch {
			case v.Completed:
				flags = append(flags, "done")
			case v.Unlockable:
				flags = append(flags, "ready")
			default:
				flags = append(flags, "locked")
			}
			if pending[v.VideoID] {
				flags = append(flags, "pending sync")
			}
			fmt.Fprintf(w, "    video %d %q [%s]\n", v.VideoID, m.Videos[j].Title, strings.Join(flags, ", "))
		}

		if a := m.Assessment; a != nil {
			switch {
			case a.Passed:
				fmt.Fprintf(w, "    assessment %d [passed %d/%d]\n", a.ID, a.ObtainedMarks, a.TotalMarks)
			case ma.AssessmentAvailable:
				fmt.Fprintf(w, "    assessment %d [available, %d attempts]\n", a.ID, a.Attempts)
			default:
				fmt.Fprintf(w, "    assessment %d [locked]\n", a.ID)
			}
		}
	}
}

func pendingSet(ids []uint) map[uint]bool {
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
