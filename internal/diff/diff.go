// Package diff computes line diffs for printing in a terminal.
package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// maxTableCells bounds the LCS table. Larger inputs are diffed by udiff, which
// needs memory proportional to the input rather than its square.
const maxTableCells = 1 << 22

type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// Line is one line of a hunk. OldNum and NewNum are 1-based; zero means absent.
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

type Stats struct {
	Additions int
	Deletions int
}

type Result struct {
	Hunks []Hunk
	Stats Stats
}

func (r *Result) Empty() bool {
	return len(r.Hunks) == 0
}

type Engine struct {
	contextLines int
	maxCells     int
}

func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{contextLines: contextLines, maxCells: maxTableCells}
}

// Diff compares old and new line by line. CRLF and LF endings compare equal.
func (e *Engine) Diff(oldContent, newContent string) *Result {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	if (len(oldLines)+1)*(len(newLines)+1) > e.maxCells {
		return e.large(oldLines, newLines)
	}

	ops := e.script(oldLines, newLines)
	result := &Result{Hunks: e.hunks(ops)}
	for _, op := range ops {
		result.Stats.count(op.Type)
	}
	return result
}

func (s *Stats) count(t LineType) {
	switch t {
	case Addition:
		s.Additions++
	case Deletion:
		s.Deletions++
	}
}

// large diffs inputs too big for the LCS table. Hunks are not guaranteed to be
// minimal.
func (e *Engine) large(oldLines, newLines []string) *Result {
	before, after := joinLines(oldLines), joinLines(newLines)
	result := &Result{}
	u, err := udiff.ToUnifiedDiff("old", "new", before, udiff.Strings(before, after), e.contextLines)
	if err != nil {
		// udiff produced edits it cannot apply; fall back to replacing everything.
		return e.replaceAll(oldLines, newLines)
	}
	for _, uh := range u.Hunks {
		oldNum, newNum := uh.FromLine, uh.ToLine
		lines := make([]Line, 0, len(uh.Lines))
		for _, ul := range uh.Lines {
			l := Line{Content: strings.TrimSuffix(ul.Content, "\n")}
			switch ul.Kind {
			case udiff.Delete:
				l.Type, l.OldNum = Deletion, oldNum
				oldNum++
			case udiff.Insert:
				l.Type, l.NewNum = Addition, newNum
				newNum++
			default:
				l.Type, l.OldNum, l.NewNum = Context, oldNum, newNum
				oldNum++
				newNum++
			}
			result.Stats.count(l.Type)
			lines = append(lines, l)
		}
		result.Hunks = append(result.Hunks, newHunk(lines))
	}
	return result
}

func (e *Engine) replaceAll(oldLines, newLines []string) *Result {
	ops := make([]Line, 0, len(oldLines)+len(newLines))
	for i, l := range oldLines {
		ops = append(ops, Line{Type: Deletion, Content: l, OldNum: i + 1})
	}
	for i, l := range newLines {
		ops = append(ops, Line{Type: Addition, Content: l, NewNum: i + 1})
	}
	return &Result{Hunks: e.hunks(ops), Stats: Stats{Additions: len(newLines), Deletions: len(oldLines)}}
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// script walks the LCS table forward and emits one Line per input line.
func (e *Engine) script(oldLines, newLines []string) []Line {
	n, m := len(oldLines), len(newLines)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	ops := make([]Line, 0, n+m)
	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && oldLines[i] == newLines[j]:
			ops = append(ops, Line{Type: Context, Content: oldLines[i], OldNum: i + 1, NewNum: j + 1})
			i++
			j++
		case i < n && (j == m || lcs[i+1][j] >= lcs[i][j+1]):
			ops = append(ops, Line{Type: Deletion, Content: oldLines[i], OldNum: i + 1})
			i++
		default:
			ops = append(ops, Line{Type: Addition, Content: newLines[j], NewNum: j + 1})
			j++
		}
	}
	return ops
}

// hunks groups changed lines with up to contextLines of surrounding context,
// merging groups whose context would overlap.
func (e *Engine) hunks(ops []Line) []Hunk {
	var hunks []Hunk
	start, end := -1, -1
	flush := func() {
		if start < 0 {
			return
		}
		lo := max(0, start-e.contextLines)
		hi := min(len(ops), end+e.contextLines+1)
		hunks = append(hunks, newHunk(ops[lo:hi]))
		start, end = -1, -1
	}

	for idx, op := range ops {
		if op.Type == Context {
			continue
		}
		if start >= 0 && idx-end > 2*e.contextLines+1 {
			flush()
		}
		if start < 0 {
			start = idx
		}
		end = idx
	}
	flush()
	return hunks
}

func newHunk(lines []Line) Hunk {
	h := Hunk{Lines: append([]Line(nil), lines...)}
	for _, l := range lines {
		if l.Type != Addition {
			if h.OldStart == 0 {
				h.OldStart = l.OldNum
			}
			h.OldLines++
		}
		if l.Type != Deletion {
			if h.NewStart == 0 {
				h.NewStart = l.NewNum
			}
			h.NewLines++
		}
	}
	return h
}

// Format renders the result as unified hunks.
func (r *Result) Format() string {
	var buf bytes.Buffer
	for _, hunk := range r.Hunks {
		buf.WriteString(hunk.Header())
		buf.WriteByte('\n')
		for _, line := range hunk.Lines {
			buf.WriteString(line.Prefix())
			buf.WriteString(line.Content)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

func (l Line) Prefix() string {
	switch l.Type {
	case Addition:
		return "+"
	case Deletion:
		return "-"
	}
	return " "
}
