package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"tfview/internal/changeset"
	"tfview/internal/errors"
	"tfview/internal/pending"
	"tfview/internal/resolve"
	"tfview/internal/tree"
	"tfview/internal/workspace"
	shared "tfview/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPending struct {
	snap       *pending.Snapshot
	refreshErr error
	refreshed  int
}

func (m *mockPending) Changes() *pending.Snapshot { return m.snap }
func (m *mockPending) Refresh(ctx context.Context) error {
	m.refreshed++
	return m.refreshErr
}

type mockTree struct {
	roots    []tree.Node[pending.PendingChange]
	children map[string][]tree.Node[pending.PendingChange]
}

func (m *mockTree) Roots(ctx context.Context) ([]tree.Node[pending.PendingChange], error) {
	return m.roots, nil
}

func (m *mockTree) ChildrenOf(ctx context.Context, path string) ([]tree.Node[pending.PendingChange], error) {
	nodes, ok := m.children[path]
	if !ok {
		return nil, errors.NotFound("file not found: " + path)
	}
	return nodes, nil
}

type mockHistory struct {
	changesets []changeset.Changeset
	gotCount   int
}

func (m *mockHistory) History(ctx context.Context, path string, count int) ([]changeset.Changeset, error) {
	m.gotCount = count
	return m.changesets, nil
}

type mockStore struct {
	byID map[int]changeset.Changeset
}

func (m *mockStore) Save(changesets []changeset.Changeset) error {
	for _, cs := range changesets {
		m.byID[cs.ID] = cs
	}
	return nil
}

func (m *mockStore) Get(id int) (*changeset.Changeset, error) {
	cs, ok := m.byID[id]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("changeset not found: %d", id))
	}
	return &cs, nil
}

func (m *mockStore) List() ([]changeset.Changeset, error) {
	out := []changeset.Changeset{}
	for _, cs := range m.byID {
		out = append(out, cs)
	}
	return out, nil
}

type mockResolver struct {
	picks []int
}

func (m *mockResolver) ResolvePair(ctx context.Context, filePath string, id int) (resolve.Pair, error) {
	if id == 404 {
		return resolve.Pair{}, errors.NotFound("no history")
	}
	return resolve.Pair{
		Title: filePath,
		Left:  resolve.Side{Path: filePath, Version: "C37", Content: "old"},
		Right: resolve.Side{Path: filePath, Version: changeset.VersionSpec(id), Content: "new"},
	}, nil
}

func (m *mockResolver) ResolveSelection(ctx context.Context, filePath string, picks []int) (resolve.Pair, error) {
	m.picks = picks
	return resolve.Pair{Title: "selection"}, nil
}

func (m *mockResolver) ResolveLatest(ctx context.Context, localPath string) (resolve.Pair, error) {
	return resolve.Pair{Title: "latest", Right: resolve.Side{Path: localPath, Local: true}}, nil
}

func (m *mockResolver) ResolveWorkspace(ctx context.Context, serverPath, localPath string, id int) (resolve.Pair, error) {
	return resolve.Pair{Title: serverPath + " -> " + localPath, Right: resolve.Side{Path: localPath, Local: true}}, nil
}

type mockStager struct{}

func (mockStager) StagePair(p resolve.Pair) (shared.DiffRequest, error) {
	return shared.DiffRequest{
		Title: p.Title,
		Left:  shared.DiffSide{Path: "/tmp/left", Temporary: !p.Left.Local},
		Right: shared.DiffSide{Path: "/tmp/right", Temporary: !p.Right.Local},
	}, nil
}

type mockActions struct {
	err error
}

func (m mockActions) Checkout(ctx context.Context, path string, recursive bool) (string, error) {
	return fmt.Sprintf("checkout %s %v", path, recursive), m.err
}

func (m mockActions) Get(ctx context.Context, path string) (string, error) {
	return "All files are up to date.", m.err
}

func (m mockActions) Undo(ctx context.Context, path string) (string, error) {
	return "Undoing edit: " + path, m.err
}

type fixture struct {
	handler  *Handler
	mux      http.Handler
	pending  *mockPending
	history  *mockHistory
	store    *mockStore
	resolver *mockResolver
	changed  int
}

func newFixture(actions mockActions) *fixture {
	f := &fixture{
		pending: &mockPending{snap: pending.NewSnapshot([]pending.PendingChange{
			{FilePath: "/w/src/a.ts", FileName: "a.ts", Action: "edit"},
		})},
		history: &mockHistory{changesets: []changeset.Changeset{
			{ID: 42, User: "jdoe", Items: []changeset.Item{
				{Type: "edit", Path: "$/P/src/a.ts"},
				{Type: "add", Path: "$/P/src/sub/b.ts"},
			}, Raw: "raw"},
		}},
		store:    &mockStore{byID: map[int]changeset.Changeset{}},
		resolver: &mockResolver{},
	}
	f.handler = NewHandler(Deps{
		Pending: f.pending,
		Tree: &mockTree{
			roots: []tree.Node[pending.PendingChange]{{Label: "src", Kind: tree.Directory, Path: "/w/src"}},
			children: map[string][]tree.Node[pending.PendingChange]{
				"/w/src": {{Label: "a.ts", Kind: tree.File, Path: "/w/src/a.ts"}},
			},
		},
		History:      f.history,
		Store:        f.store,
		Resolver:     f.resolver,
		Stager:       mockStager{},
		Actions:      actions,
		Workspace:    workspace.NewMapping("/w", "$/P"),
		HistoryCount: 15,
		OnChange:     func() { f.changed++ },
	})
	f.mux = f.handler.Routes()
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(mockActions{})
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestPending(t *testing.T) {
	f := newFixture(mockActions{})

	rec := f.do(t, http.MethodGet, "/api/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp shared.PendingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []shared.PendingChange{{FilePath: "/w/src/a.ts", FileName: "a.ts", Action: "edit"}}, resp.Changes)

	f.pending.refreshErr = errors.ProcessError("status", 1, "TF30063", nil)
	rec = f.do(t, http.MethodPost, "/api/pending/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var errResp shared.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "PROCESS", errResp.Type)
	assert.Equal(t, 1, f.pending.refreshed)
}

func TestPendingTree(t *testing.T) {
	f := newFixture(mockActions{})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		want       []tree.Descriptor
	}{
		{
			name:       "roots",
			target:     "/api/pending/tree",
			wantStatus: http.StatusOK,
			want:       []tree.Descriptor{{Label: "src", Path: "/w/src", IsDirectory: true}},
		},
		{
			name:       "children",
			target:     "/api/pending/tree?path=/w/src",
			wantStatus: http.StatusOK,
			want: []tree.Descriptor{{
				Label: "a.ts", Path: "/w/src/a.ts", Command: CommandDiffLatest, Arguments: []string{"/w/src/a.ts"},
			}},
		},
		{
			name:       "vanished directory",
			target:     "/api/pending/tree?path=/w/gone",
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.want == nil {
				return
			}
			var got []tree.Descriptor
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistoryAndChangesets(t *testing.T) {
	f := newFixture(mockActions{})

	rec := f.do(t, http.MethodGet, "/api/history?path=%24%2FP%2Fsrc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 15, f.history.gotCount)
	var hist shared.HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hist))
	require.Len(t, hist.Changesets, 1)
	assert.Equal(t, "$/P/src", hist.Path)

	rec = f.do(t, http.MethodGet, "/api/history?path=x&count=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, f.history.gotCount)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/history", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/history?path=x&count=0", nil).Code)

	rec = f.do(t, http.MethodGet, "/api/changesets/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cs changeset.Changeset
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cs))
	assert.Equal(t, "raw", cs.Raw)

	rec = f.do(t, http.MethodGet, "/api/changesets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed shared.HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	require.Len(t, listed.Changesets, 1)
	assert.Equal(t, 42, listed.Changesets[0].ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/changesets/7", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/changesets/abc", nil).Code)

	rec = f.do(t, http.MethodGet, "/api/changesets/42/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roots []tree.Descriptor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&roots))
	assert.Equal(t, []tree.Descriptor{
		{Label: "$/P/src", Path: "$/P/src", IsDirectory: true},
		{Label: "$/P/src/sub", Path: "$/P/src/sub", IsDirectory: true},
	}, roots)

	rec = f.do(t, http.MethodGet, "/api/changesets/42/tree?dir=%24%2FP%2Fsrc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var files []tree.Descriptor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&files))
	assert.Equal(t, []tree.Descriptor{{
		Label: "a.ts", Path: "$/P/src/a.ts", Command: CommandDiffPrevious, Arguments: []string{"$/P/src/a.ts", "42"},
	}}, files)
}

func TestDiffEndpoints(t *testing.T) {
	f := newFixture(mockActions{})

	rec := f.do(t, http.MethodGet, "/api/diff/previous?path=%24%2FP%2Fa.ts&id=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var req shared.DiffRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&req))
	assert.Equal(t, "$/P/a.ts", req.Title)
	assert.True(t, req.Left.Temporary)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/diff/previous?path=x&id=404", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/diff/previous?path=x", nil).Code)

	rec = f.do(t, http.MethodPost, "/api/diff/selection", shared.SelectionRequest{Path: "$/P/a.ts", Picks: []int{10, 20}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{10, 20}, f.resolver.picks)

	rec = f.do(t, http.MethodPost, "/api/diff/selection", shared.SelectionRequest{Path: "$/P/a.ts", Picks: []int{10}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/diff/latest?path=/w/src/a.ts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&req))
	assert.False(t, req.Right.Temporary)

	rec = f.do(t, http.MethodGet, "/api/diff/workspace?path=%24%2FP%2Fsrc%2Fa.ts&id=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&req))
	assert.Equal(t, "$/P/src/a.ts -> "+filepath.Join("/w", "src", "a.ts"), req.Title)

	rec = f.do(t, http.MethodGet, "/api/diff/workspace?path=%24%2FOther%2Fa.ts&id=42", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiffWorkspace_LocalPath(t *testing.T) {
	f := newFixture(mockActions{})

	tests := []struct {
		name   string
		path   string
		status int
		title  string
	}{
		{"local path under root", "/w/src/a.ts", http.StatusOK, "$/P/src/a.ts -> " + filepath.Join("/w", "src", "a.ts")},
		{"server path", "$/P/src/a.ts", http.StatusOK, "$/P/src/a.ts -> " + filepath.Join("/w", "src", "a.ts")},
		{"local path outside root", "/elsewhere/a.ts", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/diff/workspace?"+url.Values{"path": {tt.path}, "id": {"42"}}.Encode(), nil)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}
			var req shared.DiffRequest
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&req))
			assert.Equal(t, tt.title, req.Title)
		})
	}
}

func TestActions(t *testing.T) {
	f := newFixture(mockActions{})

	tests := []struct {
		target string
		body   shared.ActionRequest
		want   string
	}{
		{"/api/checkout", shared.ActionRequest{Path: "/w/a.ts", Recursive: true}, "checkout /w/a.ts true"},
		{"/api/get", shared.ActionRequest{Path: "/w"}, "All files are up to date."},
		{"/api/undo", shared.ActionRequest{Path: "/w/a.ts"}, "Undoing edit: /w/a.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.target, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			var resp shared.MessageResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.want, resp.Message)
		})
	}
	assert.Equal(t, 3, f.changed)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/undo", shared.ActionRequest{}).Code)

	failing := newFixture(mockActions{err: errors.ProcessError("undo", 1, "no pending change", nil)})
	rec := failing.do(t, http.MethodPost, "/api/undo", shared.ActionRequest{Path: "/w/x"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 0, failing.changed)
}
