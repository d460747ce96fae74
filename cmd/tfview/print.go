package main

import (
	"fmt"
	"io"
	"strings"

	"tfview/internal/changeset"
	"tfview/internal/diff"
	"tfview/internal/tree"
	shared "tfview/shared/types"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func actionColor(action string) func(a ...interface{}) string {
	switch {
	case strings.Contains(action, "add"), strings.Contains(action, "branch"):
		return green
	case strings.Contains(action, "delete"):
		return red
	case strings.Contains(action, "rename"):
		return blue
	}
	return yellow
}

func printPending(w io.Writer, changes []shared.PendingChange) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "There are no pending changes.")
		return
	}
	fmt.Fprintf(w, "\nPending changes:\n\n")
	for _, c := range changes {
		fmt.Fprintf(w, "\t%-10s %s\n", actionColor(c.Action)(c.Action), c.FilePath)
	}
	fmt.Fprintln(w)
}

func printHistory(w io.Writer, changesets []changeset.Changeset) {
	if len(changesets) == 0 {
		fmt.Fprintln(w, "No history found")
		return
	}
	for _, cs := range changesets {
		comment := strings.SplitN(cs.Comments, "\n", 2)[0]
		fmt.Fprintf(w, "%s  %-20s  %s  %s\n", yellow(fmt.Sprintf("%6d", cs.ID)), cs.User, cs.Date, comment)
	}
}

// printChangeset renders the items grouped under their folders.
func printChangeset(w io.Writer, cs *changeset.Changeset) {
	fmt.Fprintf(w, "%s %d by %s on %s\n", bold("Changeset"), cs.ID, cs.User, cs.Date)
	if cs.Comments != "" {
		for _, line := range strings.Split(cs.Comments, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
	fmt.Fprintln(w)
	for _, dir := range tree.ChangesetRoots(cs.Items) {
		fmt.Fprintln(w, cyan(dir.Label))
		for _, file := range tree.ChangesetChildren(dir, cs.Items) {
			fmt.Fprintf(w, "\t%-24s %s\n", actionColor(file.Record.Type)(file.Record.Type), file.Label)
		}
	}
}

func printDiff(w io.Writer, d diffSides) {
	result := diff.NewEngine(3).Diff(d.Left, d.Right)
	fmt.Fprintln(w, bold(d.Title))
	if result.Empty() {
		fmt.Fprintln(w, "No differences")
		return
	}
	for _, hunk := range result.Hunks {
		fmt.Fprintln(w, cyan(hunk.Header()))
		for _, line := range hunk.Lines {
			text := line.Prefix() + line.Content
			switch line.Type {
			case diff.Addition:
				text = green(text)
			case diff.Deletion:
				text = red(text)
			}
			fmt.Fprintln(w, text)
		}
	}
	fmt.Fprintf(w, "\n%s, %s\n",
		green(fmt.Sprintf("%d additions", result.Stats.Additions)),
		red(fmt.Sprintf("%d deletions", result.Stats.Deletions)))
}
