package tf

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// NoPendingChanges is printed by status when the workspace is clean.
const NoPendingChanges = "There are no pending changes."

// IncludedChange is one row of the status table.
type IncludedChange struct {
	FileName string `json:"fileName"`
	Action   string `json:"action"`
	FilePath string `json:"filePath"`
}

type StatusResult struct {
	HasPendingChanges bool
	IncludedChanges   []IncludedChange
}

var summaryLine = regexp.MustCompile(`^\d+ change\(s\)`)

// column bounds are rune offsets.
type column struct {
	start, end int
}

// ParseStatus reads the brief status table:
//
//	File name  Change Local path
//	---------- ------ ----------------------
//	$/Proj/Main/src
//	overlay.ts edit   /src/main/src/overlay.ts
//
//	1 change(s), 0 detected change(s)
//
// Column widths come from the dash rule. Server folder rows are skipped and the
// table ends at the summary line or at the next section header.
func ParseStatus(output string) StatusResult {
	if strings.Contains(output, NoPendingChanges) {
		return StatusResult{IncludedChanges: []IncludedChange{}}
	}

	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	changes := []IncludedChange{}

	var cols []column
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if cols == nil {
			if strings.HasPrefix(line, "File name") && i+1 < len(lines) && isRule(lines[i+1]) {
				cols = columns(lines[i+1])
				i++
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if summaryLine.MatchString(trimmed) || strings.HasSuffix(trimmed, ":") {
			break
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "$/") {
			continue
		}
		if change, ok := parseRow(line, cols); ok {
			changes = append(changes, change)
		}
	}

	return StatusResult{
		HasPendingChanges: len(changes) > 0,
		IncludedChanges:   changes,
	}
}

func isRule(line string) bool {
	line = strings.TrimSpace(line)
	return line != "" && strings.Trim(line, "- ") == ""
}

func columns(rule string) []column {
	var cols []column
	start := -1
	for i, r := range []rune(rule) {
		switch {
		case r == '-' && start < 0:
			start = i
		case r != '-' && start >= 0:
			cols = append(cols, column{start, i})
			start = -1
		}
	}
	if start >= 0 {
		cols = append(cols, column{start, utf8.RuneCountInString(rule)})
	}
	return cols
}

func parseRow(line string, cols []column) (IncludedChange, bool) {
	if len(cols) < 3 {
		return IncludedChange{}, false
	}
	// tf pads columns by characters, not bytes.
	row := []rune(line)
	field := func(c column, last bool) string {
		if c.start >= len(row) {
			return ""
		}
		end := c.end
		if last || end > len(row) {
			end = len(row)
		}
		return strings.TrimSpace(string(row[c.start:end]))
	}

	change := IncludedChange{
		FileName: field(cols[0], false),
		Action:   field(cols[1], false),
		FilePath: field(cols[len(cols)-1], true),
	}
	if change.FilePath == "" {
		return IncludedChange{}, false
	}
	return change, true
}
