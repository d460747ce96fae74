// Package shared holds the JSON shapes exchanged between the service and its clients.
package shared

import "tfview/internal/changeset"

// PendingChange mirrors pending.PendingChange on the wire.
type PendingChange struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	Action   string `json:"action"`
}

type PendingResponse struct {
	Changes []PendingChange `json:"changes"`
}

type HistoryResponse struct {
	Path       string                `json:"path"`
	Changesets []changeset.Changeset `json:"changesets"`
}

// DiffSide names one file to open in a diff viewer. Temporary files were
// generated from server content and may be deleted after viewing.
type DiffSide struct {
	Path      string `json:"path"`
	Temporary bool   `json:"temporary"`
}

type DiffRequest struct {
	Title string   `json:"title"`
	Left  DiffSide `json:"left"`
	Right DiffSide `json:"right"`
}

type SelectionRequest struct {
	Path  string `json:"path"`
	Picks []int  `json:"picks"`
}

type ActionRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type"`
	Details any    `json:"details,omitempty"`
}

const EventPending = "pending"

// Event is pushed over the events websocket.
type Event struct {
	Type    string          `json:"type"`
	Changes []PendingChange `json:"changes"`
}
