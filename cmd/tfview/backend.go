package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"tfview/client"
	"tfview/internal/changeset"
	"tfview/internal/errors"
	"tfview/internal/extension"
	"tfview/internal/pending"
	"tfview/internal/resolve"
	"tfview/internal/tf"
	"tfview/internal/workspace"
	shared "tfview/shared/types"
)

// diffSides is a resolved diff ready to print.
type diffSides struct {
	Title string
	Left  string
	Right string
}

// backend is what the CLI commands need, served either by running tf directly
// or by a running tfview server.
type backend interface {
	Pending(ctx context.Context) ([]shared.PendingChange, error)
	History(ctx context.Context, path string, count int) ([]changeset.Changeset, error)
	Changeset(ctx context.Context, path string, id int) (*changeset.Changeset, error)
	DiffPrevious(ctx context.Context, path string, id int) (diffSides, error)
	DiffSelection(ctx context.Context, path string, picks []int) (diffSides, error)
	DiffLatest(ctx context.Context, localPath string) (diffSides, error)
	DiffWorkspace(ctx context.Context, path string, id int) (diffSides, error)
	Action(ctx context.Context, name, path string, recursive bool) (string, error)
	HistoryCount() int
}

func openBackend() (backend, error) {
	if serverURL != "" {
		return &remoteBackend{client: client.New(serverURL), count: historyCount}, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := extension.LoadConfig(configPath, dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runner, err := tf.NewExecRunner(cfg.TfPath)
	if err != nil {
		return nil, err
	}
	c := tf.NewClient(runner,
		tf.WithTimeout(cfg.CommandTimeout()),
		tf.WithWorkingDir(cfg.Workspace.Root),
		tf.WithLogger(logger.Named("tf")),
	)
	count := cfg.HistoryCount
	if historyCount > 0 {
		count = historyCount
	}
	return &localBackend{
		client:   c,
		resolver: resolve.New(c, c, logger.Named("resolve")),
		mapping:  workspace.NewMapping(cfg.Workspace.Root, cfg.Workspace.ServerRoot),
		root:     cfg.Workspace.Root,
		count:    count,
	}, nil
}

type localBackend struct {
	client   *tf.Client
	resolver *resolve.Resolver
	mapping  workspace.Mapping
	root     string
	count    int
}

func (b *localBackend) HistoryCount() int { return b.count }

func (b *localBackend) Pending(ctx context.Context) ([]shared.PendingChange, error) {
	repo := pending.NewRepository(b.client, b.root, logger.Named("pending"))
	if err := repo.Refresh(ctx); err != nil {
		return nil, err
	}
	out := []shared.PendingChange{}
	for _, c := range repo.Changes().All() {
		out = append(out, shared.PendingChange{FilePath: c.FilePath, FileName: c.FileName, Action: c.Action})
	}
	return out, nil
}

func (b *localBackend) History(ctx context.Context, path string, count int) ([]changeset.Changeset, error) {
	return b.client.History(ctx, path, count)
}

func (b *localBackend) Changeset(ctx context.Context, path string, id int) (*changeset.Changeset, error) {
	changesets, err := b.client.PreviousVersions(ctx, path, id)
	if err != nil {
		return nil, err
	}
	for i := range changesets {
		if changesets[i].ID == id {
			return &changesets[i], nil
		}
	}
	return nil, errors.NotFound("changeset not found: " + strconv.Itoa(id))
}

func fromPair(p resolve.Pair, err error) (diffSides, error) {
	if err != nil {
		return diffSides{}, err
	}
	return diffSides{Title: p.Title, Left: p.Left.Content, Right: p.Right.Content}, nil
}

func (b *localBackend) DiffPrevious(ctx context.Context, path string, id int) (diffSides, error) {
	return fromPair(b.resolver.ResolvePair(ctx, path, id))
}

func (b *localBackend) DiffSelection(ctx context.Context, path string, picks []int) (diffSides, error) {
	return fromPair(b.resolver.ResolveSelection(ctx, path, picks))
}

func (b *localBackend) DiffLatest(ctx context.Context, localPath string) (diffSides, error) {
	return fromPair(b.resolver.ResolveLatest(ctx, localPath))
}

// DiffWorkspace accepts either a server path or a path in the working folder.
func (b *localBackend) DiffWorkspace(ctx context.Context, path string, id int) (diffSides, error) {
	server, local, err := b.resolvePaths(path)
	if err != nil {
		return diffSides{}, err
	}
	return fromPair(b.resolver.ResolveWorkspace(ctx, server, local, id))
}

func (b *localBackend) resolvePaths(path string) (server, local string, err error) {
	if !workspace.IsServerPath(path) {
		if path, err = filepath.Abs(path); err != nil {
			return "", "", err
		}
	}
	if server, err = b.mapping.ToServer(path); err != nil {
		return "", "", err
	}
	if local, err = b.mapping.ToLocal(server); err != nil {
		return "", "", err
	}
	return server, local, nil
}

func (b *localBackend) Action(ctx context.Context, name, path string, recursive bool) (string, error) {
	switch name {
	case "checkout":
		return b.client.Checkout(ctx, path, recursive)
	case "get":
		return b.client.Get(ctx, path)
	case "undo":
		return b.client.Undo(ctx, path)
	}
	return "", errors.ValidationError("unknown action", name)
}

type remoteBackend struct {
	client *client.Client
	count  int
}

func (b *remoteBackend) HistoryCount() int { return b.count }

func (b *remoteBackend) Pending(ctx context.Context) ([]shared.PendingChange, error) {
	return b.client.RefreshPending(ctx)
}

func (b *remoteBackend) History(ctx context.Context, path string, count int) ([]changeset.Changeset, error) {
	return b.client.History(ctx, path, count)
}

// Changeset reads the server's store, which holds every changeset it has listed.
func (b *remoteBackend) Changeset(ctx context.Context, path string, id int) (*changeset.Changeset, error) {
	cs, err := b.client.Changeset(ctx, id)
	if errors.TypeOf(err) != errors.ErrorTypeNotFound {
		return cs, err
	}
	if _, err := b.client.History(ctx, path, b.count); err != nil {
		return nil, err
	}
	return b.client.Changeset(ctx, id)
}

// fromStaged reads back the files the server staged for an external viewer.
func fromStaged(req *shared.DiffRequest, err error) (diffSides, error) {
	if err != nil {
		return diffSides{}, err
	}
	left, err := os.ReadFile(req.Left.Path)
	if err != nil {
		return diffSides{}, errors.FromFS(err)
	}
	right, err := os.ReadFile(req.Right.Path)
	if err != nil {
		return diffSides{}, errors.FromFS(err)
	}
	return diffSides{Title: req.Title, Left: string(left), Right: string(right)}, nil
}

func (b *remoteBackend) DiffPrevious(ctx context.Context, path string, id int) (diffSides, error) {
	return fromStaged(b.client.DiffPrevious(ctx, path, id))
}

func (b *remoteBackend) DiffSelection(ctx context.Context, path string, picks []int) (diffSides, error) {
	return fromStaged(b.client.DiffSelection(ctx, path, picks))
}

func (b *remoteBackend) DiffLatest(ctx context.Context, localPath string) (diffSides, error) {
	return fromStaged(b.client.DiffLatest(ctx, localPath))
}

func (b *remoteBackend) DiffWorkspace(ctx context.Context, path string, id int) (diffSides, error) {
	if !workspace.IsServerPath(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return diffSides{}, err
		}
		path = abs
	}
	return fromStaged(b.client.DiffWorkspace(ctx, path, id))
}

func (b *remoteBackend) Action(ctx context.Context, name, path string, recursive bool) (string, error) {
	return b.client.Action(ctx, name, path, recursive)
}
