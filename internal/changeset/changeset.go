// Package changeset parses the detailed history output of the tf client.
//
// A detailed history response is a sequence of blocks separated by a rule of 79
// dashes. Each block looks like:
//
//	Changeset: 42
//	User: CORP\jdoe
//	Date: Tuesday, May 1, 2018 3:04:05 PM
//
//	Comment:
//	  Fix the parser
//
//	Items:
//	  edit $/Proj/src/a.ts
//
// Parsing is tolerant: missing sections keep their zero value and a bad id becomes
// InvalidID, so one corrupt block never aborts a multi-changeset response.
package changeset

import (
	"runtime"
	"strconv"
	"strings"
)

// InvalidID is assigned when the Changeset line is missing or not numeric.
const InvalidID = -1

// Rule separates blocks in detailed history output.
var Rule = strings.Repeat("-", 79)

// LineSeparator joins multi-line comments.
var LineSeparator = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// Item is one entry of the Items section.
type Item struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Changeset is one parsed history block. Treat it as immutable.
type Changeset struct {
	ID       int    `json:"id"`
	User     string `json:"user"`
	Date     string `json:"date"`
	Comments string `json:"comments"`
	Items    []Item `json:"items"`
	Raw      string `json:"raw"`
}

// GetID implements storage.Entity.
func (c *Changeset) GetID() string {
	return strconv.Itoa(c.ID)
}

// Version is the versionspec selecting this changeset, e.g. C42.
func (c *Changeset) Version() string {
	return VersionSpec(c.ID)
}

// String returns the block exactly as the tool printed it.
func (c Changeset) String() string {
	return c.Raw
}

// VersionSpec formats a changeset id as a tf versionspec.
func VersionSpec(id int) string {
	return "C" + strconv.Itoa(id)
}

const (
	labelChangeset = "Changeset:"
	labelUser      = "User:"
	labelDate      = "Date:"
	labelComment   = "Comment:"
	labelItems     = "Items:"
	indent         = "  "
)

type section int

const (
	sectionNone section = iota
	sectionComment
	sectionItems
	sectionIgnored
)

// Parse turns one block (without the surrounding rule lines) into a Changeset.
func Parse(block string) Changeset {
	cs := Changeset{
		ID:    InvalidID,
		Items: []Item{},
		Raw:   block,
	}

	var comments []string
	current := sectionNone

	for _, line := range splitLines(block) {
		if strings.HasPrefix(line, indent) {
			switch current {
			case sectionComment:
				comments = append(comments, strings.TrimLeft(line, " \t"))
			case sectionItems:
				cs.Items = append(cs.Items, parseItem(line))
			}
			continue
		}

		// Any line failing the indentation test closes the open section.
		current = sectionNone

		switch {
		case strings.HasPrefix(line, labelChangeset):
			cs.ID = parseID(value(line, labelChangeset))
		case strings.HasPrefix(line, labelUser):
			cs.User = value(line, labelUser)
		case strings.HasPrefix(line, labelDate):
			cs.Date = value(line, labelDate)
		case strings.HasPrefix(line, labelComment):
			current = sectionComment
		case strings.HasPrefix(line, labelItems):
			current = sectionItems
		case strings.HasSuffix(strings.TrimSpace(line), ":"):
			// Check-in Notes:, Policy Warnings: and similar trailers.
			current = sectionIgnored
		}
	}

	cs.Comments = strings.Join(comments, LineSeparator)
	return cs
}

// ParseHistory splits a full detailed history response and parses each block.
// Text before the first rule is a banner and is dropped.
func ParseHistory(output string) []Changeset {
	parts := strings.Split(output, Rule)
	if len(parts) < 2 {
		return []Changeset{}
	}

	changesets := make([]Changeset, 0, len(parts)-1)
	for _, part := range parts[1:] {
		changesets = append(changesets, Parse(part))
	}
	return changesets
}

func splitLines(block string) []string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func value(line, label string) string {
	return strings.TrimSpace(line[len(label):])
}

func parseID(raw string) int {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return InvalidID
	}
	return id
}

func parseItem(line string) Item {
	line = strings.TrimSpace(line)
	idx := strings.IndexByte(line, '$')
	if idx < 0 {
		return Item{Path: line}
	}
	return Item{
		Type: strings.TrimSpace(line[:idx]),
		Path: line[idx:],
	}
}
