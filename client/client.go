// Package client talks to a running tfview service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tfview/internal/changeset"
	"tfview/internal/errors"
	shared "tfview/shared/types"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// History and view calls wait on the tf process.
			Timeout: time.Minute,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr shared.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return fmt.Errorf("unexpected status: %s", resp.Status)
		}
		return &errors.Error{
			Type:    errors.ErrorType(apiErr.Type),
			Message: apiErr.Error,
			Code:    resp.StatusCode,
			Details: apiErr.Details,
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) Pending(ctx context.Context) ([]shared.PendingChange, error) {
	var resp shared.PendingResponse
	if err := c.do(ctx, http.MethodGet, "/api/pending", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Changes, nil
}

func (c *Client) RefreshPending(ctx context.Context) ([]shared.PendingChange, error) {
	var resp shared.PendingResponse
	if err := c.do(ctx, http.MethodPost, "/api/pending/refresh", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Changes, nil
}

func (c *Client) History(ctx context.Context, path string, count int) ([]changeset.Changeset, error) {
	q := url.Values{"path": {path}}
	if count > 0 {
		q.Set("count", strconv.Itoa(count))
	}
	var resp shared.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/history", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Changesets, nil
}

func (c *Client) Changeset(ctx context.Context, id int) (*changeset.Changeset, error) {
	var cs changeset.Changeset
	if err := c.do(ctx, http.MethodGet, "/api/changesets/"+strconv.Itoa(id), nil, nil, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

func (c *Client) DiffPrevious(ctx context.Context, path string, id int) (*shared.DiffRequest, error) {
	var req shared.DiffRequest
	q := url.Values{"path": {path}, "id": {strconv.Itoa(id)}}
	if err := c.do(ctx, http.MethodGet, "/api/diff/previous", q, nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) DiffSelection(ctx context.Context, path string, picks []int) (*shared.DiffRequest, error) {
	var req shared.DiffRequest
	body := shared.SelectionRequest{Path: path, Picks: picks}
	if err := c.do(ctx, http.MethodPost, "/api/diff/selection", nil, body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) DiffLatest(ctx context.Context, localPath string) (*shared.DiffRequest, error) {
	var req shared.DiffRequest
	if err := c.do(ctx, http.MethodGet, "/api/diff/latest", url.Values{"path": {localPath}}, nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DiffWorkspace compares path at changeset id with its working copy. path may be
// a server path or an absolute path in the working folder.
func (c *Client) DiffWorkspace(ctx context.Context, path string, id int) (*shared.DiffRequest, error) {
	var req shared.DiffRequest
	q := url.Values{"path": {path}, "id": {strconv.Itoa(id)}}
	if err := c.do(ctx, http.MethodGet, "/api/diff/workspace", q, nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *Client) Action(ctx context.Context, name, path string, recursive bool) (string, error) {
	var resp shared.MessageResponse
	body := shared.ActionRequest{Path: path, Recursive: recursive}
	if err := c.do(ctx, http.MethodPost, "/api/"+name, nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
