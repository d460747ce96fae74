// Package api serves pending changes, history and diff requests to the editor.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"tfview/internal/changeset"
	"tfview/internal/errors"
	"tfview/internal/logging"
	"tfview/internal/pending"
	"tfview/internal/resolve"
	"tfview/internal/tree"
	"tfview/internal/validation"
	shared "tfview/shared/types"

	"go.uber.org/zap"
)

// Commands attached to file descriptors.
const (
	CommandDiffLatest   = "diff-latest"
	CommandDiffPrevious = "diff-previous"
)

type PendingService interface {
	Changes() *pending.Snapshot
	Refresh(ctx context.Context) error
}

type TreeService interface {
	Roots(ctx context.Context) ([]tree.Node[pending.PendingChange], error)
	ChildrenOf(ctx context.Context, path string) ([]tree.Node[pending.PendingChange], error)
}

type HistoryService interface {
	History(ctx context.Context, path string, count int) ([]changeset.Changeset, error)
}

type ChangesetStore interface {
	Save(changesets []changeset.Changeset) error
	Get(id int) (*changeset.Changeset, error)
	List() ([]changeset.Changeset, error)
}

type DiffResolver interface {
	ResolvePair(ctx context.Context, filePath string, changesetID int) (resolve.Pair, error)
	ResolveSelection(ctx context.Context, filePath string, picks []int) (resolve.Pair, error)
	ResolveLatest(ctx context.Context, localPath string) (resolve.Pair, error)
	ResolveWorkspace(ctx context.Context, serverPath, localPath string, changesetID int) (resolve.Pair, error)
}

// PathMapper translates between server paths and the working folder.
type PathMapper interface {
	ToServer(local string) (string, error)
	ToLocal(server string) (string, error)
}

type DiffStager interface {
	StagePair(p resolve.Pair) (shared.DiffRequest, error)
}

type ActionService interface {
	Checkout(ctx context.Context, path string, recursive bool) (string, error)
	Get(ctx context.Context, path string) (string, error)
	Undo(ctx context.Context, path string) (string, error)
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Pending      PendingService
	Tree         TreeService
	History      HistoryService
	Store        ChangesetStore
	Resolver     DiffResolver
	Stager       DiffStager
	Actions      ActionService
	Workspace    PathMapper
	Events       http.Handler
	HistoryCount int
	// OnChange runs after an action that alters pending changes.
	OnChange func()
	Logger   *logging.Logger
}

type Handler struct {
	Deps
}

func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.OnChange == nil {
		deps.OnChange = func() {}
	}
	return &Handler{Deps: deps}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /api/pending", h.ListPending)
	mux.HandleFunc("POST /api/pending/refresh", h.RefreshPending)
	mux.HandleFunc("GET /api/pending/tree", h.PendingTree)

	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("GET /api/changesets", h.ListChangesets)
	mux.HandleFunc("GET /api/changesets/{id}", h.GetChangeset)
	mux.HandleFunc("GET /api/changesets/{id}/tree", h.ChangesetTree)

	mux.HandleFunc("GET /api/diff/previous", h.DiffPrevious)
	mux.HandleFunc("POST /api/diff/selection", h.DiffSelection)
	mux.HandleFunc("GET /api/diff/latest", h.DiffLatest)
	mux.HandleFunc("GET /api/diff/workspace", h.DiffWorkspace)

	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/get", h.Get)
	mux.HandleFunc("POST /api/undo", h.Undo)

	if h.Events != nil {
		mux.Handle("GET /api/events", h.Events)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	resp := shared.ErrorResponse{Error: err.Error(), Type: string(errors.TypeOf(err))}
	var typed *errors.Error
	if errors.As(err, &typed) {
		resp.Error = typed.Message
		resp.Details = typed.Details
	}

	log := h.Logger.WithRequestID(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Info("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ToShared converts a snapshot for the wire.
func ToShared(snap *pending.Snapshot) []shared.PendingChange {
	all := snap.All()
	out := make([]shared.PendingChange, 0, len(all))
	for _, c := range all {
		out = append(out, shared.PendingChange{FilePath: c.FilePath, FileName: c.FileName, Action: c.Action})
	}
	return out
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, shared.PendingResponse{Changes: ToShared(h.Pending.Changes())})
}

func (h *Handler) RefreshPending(w http.ResponseWriter, r *http.Request) {
	if err := h.Pending.Refresh(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shared.PendingResponse{Changes: ToShared(h.Pending.Changes())})
}

func (h *Handler) PendingTree(w http.ResponseWriter, r *http.Request) {
	var (
		nodes []tree.Node[pending.PendingChange]
		err   error
	)
	if dir := r.URL.Query().Get("path"); dir != "" {
		nodes, err = h.Tree.ChildrenOf(r.Context(), dir)
	} else {
		nodes, err = h.Tree.Roots(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]tree.Descriptor, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, tree.Describe(n, CommandDiffLatest, n.Path))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	path, err := validation.RequiredPath(r, "path")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	count, err := validation.HistoryCount(r.URL.Query().Get("count"), h.HistoryCount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	changesets, err := h.Deps.History.History(r.Context(), path, count)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.Save(changesets); err != nil {
		h.Logger.WithRequestID(r.Context()).Warn("storing changesets", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, shared.HistoryResponse{Path: path, Changesets: changesets})
}

func (h *Handler) changeset(r *http.Request) (*changeset.Changeset, error) {
	id, err := validation.ChangesetID(r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	return h.Store.Get(id)
}

// ListChangesets returns every changeset seen so far, newest first.
func (h *Handler) ListChangesets(w http.ResponseWriter, r *http.Request) {
	changesets, err := h.Store.List()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shared.HistoryResponse{Changesets: changesets})
}

func (h *Handler) GetChangeset(w http.ResponseWriter, r *http.Request) {
	cs, err := h.changeset(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) ChangesetTree(w http.ResponseWriter, r *http.Request) {
	cs, err := h.changeset(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var out []tree.Descriptor
	if dir := r.URL.Query().Get("dir"); dir != "" {
		children := tree.ChangesetChildren(tree.DirectoryNode(dir), cs.Items)
		out = make([]tree.Descriptor, 0, len(children))
		for _, n := range children {
			out = append(out, tree.Describe(n, CommandDiffPrevious, n.Path, strconv.Itoa(cs.ID)))
		}
	} else {
		roots := tree.ChangesetRoots(cs.Items)
		out = make([]tree.Descriptor, 0, len(roots))
		for _, n := range roots {
			out = append(out, tree.Describe(n, ""))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) stage(w http.ResponseWriter, r *http.Request, pair resolve.Pair, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.Stager.StagePair(pair)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) DiffPrevious(w http.ResponseWriter, r *http.Request) {
	path, err := validation.RequiredPath(r, "path")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := validation.ChangesetID(r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pair, err := h.Resolver.ResolvePair(r.Context(), path, id)
	h.stage(w, r, pair, err)
}

func (h *Handler) DiffSelection(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeSelection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pair, err := h.Resolver.ResolveSelection(r.Context(), req.Path, req.Picks)
	h.stage(w, r, pair, err)
}

func (h *Handler) DiffLatest(w http.ResponseWriter, r *http.Request) {
	path, err := validation.RequiredPath(r, "path")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pair, err := h.Resolver.ResolveLatest(r.Context(), path)
	h.stage(w, r, pair, err)
}

// DiffWorkspace compares a changeset version with the working copy. The path
// may be given on either side of the mapping.
func (h *Handler) DiffWorkspace(w http.ResponseWriter, r *http.Request) {
	path, err := validation.RequiredPath(r, "path")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := validation.ChangesetID(r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	server, err := h.Workspace.ToServer(path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	local, err := h.Workspace.ToLocal(server)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pair, err := h.Resolver.ResolveWorkspace(r.Context(), server, local, id)
	h.stage(w, r, pair, err)
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, req *shared.ActionRequest) (string, error)) {
	req, err := validation.DecodeAction(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := run(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.OnChange()
	writeJSON(w, http.StatusOK, shared.MessageResponse{Message: msg})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(ctx context.Context, req *shared.ActionRequest) (string, error) {
		return h.Actions.Checkout(ctx, req.Path, req.Recursive)
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(ctx context.Context, req *shared.ActionRequest) (string, error) {
		return h.Actions.Get(ctx, req.Path)
	})
}

func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(ctx context.Context, req *shared.ActionRequest) (string, error) {
		return h.Actions.Undo(ctx, req.Path)
	})
}
