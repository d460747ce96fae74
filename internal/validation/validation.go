// Package validation checks API request parameters.
package validation

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"tfview/internal/errors"
	shared "tfview/shared/types"
)

// MaxHistoryCount caps /stopafter so one request cannot pull the whole history.
const MaxHistoryCount = 1000

// RequiredPath returns a non-empty path query parameter.
func RequiredPath(r *http.Request, name string) (string, error) {
	p := strings.TrimSpace(r.URL.Query().Get(name))
	if p == "" {
		return "", errors.ValidationError(name+" is required", nil)
	}
	if strings.ContainsRune(p, 0) {
		return "", errors.ValidationError(name+" contains invalid characters", nil)
	}
	return p, nil
}

// ChangesetID parses a non-negative changeset id.
func ChangesetID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id < 0 {
		return 0, errors.ValidationError("invalid changeset id", raw)
	}
	return id, nil
}

// HistoryCount parses count, falling back to def when absent.
func HistoryCount(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxHistoryCount {
		return 0, errors.ValidationError("count must be between 1 and 1000", raw)
	}
	return n, nil
}

func DecodeSelection(r *http.Request) (*shared.SelectionRequest, error) {
	var req shared.SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.ValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, errors.ValidationError("path is required", nil)
	}
	if len(req.Picks) != 2 {
		return nil, errors.ValidationError("exactly two changesets must be selected", req.Picks)
	}
	for _, id := range req.Picks {
		if id < 0 {
			return nil, errors.ValidationError("invalid changeset id", id)
		}
	}
	return &req, nil
}

func DecodeAction(r *http.Request) (*shared.ActionRequest, error) {
	var req shared.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.ValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, errors.ValidationError("path is required", nil)
	}
	return &req, nil
}
