// Package resolve decides which two content versions a diff compares.
package resolve

import (
	"context"
	"fmt"
	"os"

	"tfview/internal/changeset"
	"tfview/internal/errors"
	"tfview/internal/logging"

	"go.uber.org/zap"
)

// HistorySource returns a changeset and its predecessor, newest first.
type HistorySource interface {
	PreviousVersions(ctx context.Context, path string, changesetID int) ([]changeset.Changeset, error)
}

// ContentSource returns file content at a versionspec; an empty version is latest.
type ContentSource interface {
	View(ctx context.Context, path, version string) (string, error)
}

// LocalReader reads a workspace file from disk.
type LocalReader func(path string) ([]byte, error)

// Side is one half of a diff.
type Side struct {
	Path    string
	Version string
	Content string
	// Local marks content read from the working copy instead of the server.
	Local bool
}

// Pair is what the diff viewer shows; Left is the older side.
type Pair struct {
	Title string
	Left  Side
	Right Side
}

type Resolver struct {
	history HistorySource
	content ContentSource
	local   LocalReader
	logger  *logging.Logger
}

func New(history HistorySource, content ContentSource, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{history: history, content: content, local: os.ReadFile, logger: logger}
}

// WithLocalReader replaces the working copy reader, for tests.
func (r *Resolver) WithLocalReader(fn LocalReader) *Resolver {
	r.local = fn
	return r
}

// ResolvePreviousVersion returns the changeset immediately preceding changesetID for
// filePath, or nil when the file was added there.
func (r *Resolver) ResolvePreviousVersion(ctx context.Context, filePath string, changesetID int) (*changeset.Changeset, error) {
	changesets, err := r.history.PreviousVersions(ctx, filePath, changesetID)
	if err != nil {
		return nil, err
	}

	switch n := len(changesets); {
	case n == 0:
		return nil, errors.NotFound(fmt.Sprintf("no history for %s at %s", filePath, changeset.VersionSpec(changesetID)))
	case n == 1:
		return nil, nil
	case n > 2:
		r.logger.Warn("history returned more entries than requested",
			zap.String("path", filePath), zap.Int("changeset", changesetID), zap.Int("count", n))
	}
	prev := changesets[1]
	return &prev, nil
}

// ResolvePair compares changesetID's version of filePath with its predecessor. An
// added file is compared against empty content.
func (r *Resolver) ResolvePair(ctx context.Context, filePath string, changesetID int) (Pair, error) {
	prev, err := r.ResolvePreviousVersion(ctx, filePath, changesetID)
	if err != nil {
		return Pair{}, err
	}

	left := Side{Path: filePath}
	if prev != nil {
		// The predecessor may live under its pre-rename path.
		prevPath := filePath
		if len(prev.Items) > 0 && prev.Items[0].Path != "" {
			prevPath = prev.Items[0].Path
		}
		left, err = r.fetch(ctx, prevPath, prev.Version())
		if err != nil {
			return Pair{}, err
		}
	}

	right, err := r.fetch(ctx, filePath, changeset.VersionSpec(changesetID))
	if err != nil {
		return Pair{}, err
	}

	title := fmt.Sprintf("%s (%s)", filePath, right.Version)
	if prev != nil {
		title = fmt.Sprintf("%s (%s <-> %s)", filePath, left.Version, right.Version)
	}
	return Pair{Title: title, Left: left, Right: right}, nil
}

// ResolveSelection compares two changesets picked by the user. The second pick is
// shown on the left.
func (r *Resolver) ResolveSelection(ctx context.Context, filePath string, picks []int) (Pair, error) {
	if len(picks) != 2 {
		return Pair{}, errors.ValidationError("exactly two changesets must be selected", picks)
	}

	right, err := r.fetch(ctx, filePath, changeset.VersionSpec(picks[0]))
	if err != nil {
		return Pair{}, err
	}
	left, err := r.fetch(ctx, filePath, changeset.VersionSpec(picks[1]))
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		Title: fmt.Sprintf("%s (%s <-> %s)", filePath, left.Version, right.Version),
		Left:  left,
		Right: right,
	}, nil
}

// ResolveLatest compares the latest server version of a pending file with the
// working copy at localPath.
func (r *Resolver) ResolveLatest(ctx context.Context, localPath string) (Pair, error) {
	left, err := r.fetch(ctx, localPath, "")
	if err != nil {
		return Pair{}, err
	}
	left.Version = "latest"

	right, err := r.readLocal(localPath)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Title: localPath + " (latest <-> local)", Left: left, Right: right}, nil
}

// ResolveWorkspace compares serverPath at changesetID with the working copy at localPath.
func (r *Resolver) ResolveWorkspace(ctx context.Context, serverPath, localPath string, changesetID int) (Pair, error) {
	left, err := r.fetch(ctx, serverPath, changeset.VersionSpec(changesetID))
	if err != nil {
		return Pair{}, err
	}
	right, err := r.readLocal(localPath)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		Title: fmt.Sprintf("%s (%s <-> local)", serverPath, left.Version),
		Left:  left,
		Right: right,
	}, nil
}

func (r *Resolver) fetch(ctx context.Context, path, version string) (Side, error) {
	content, err := r.content.View(ctx, path, version)
	if err != nil {
		return Side{}, err
	}
	return Side{Path: path, Version: version, Content: content}, nil
}

func (r *Resolver) readLocal(path string) (Side, error) {
	data, err := r.local(path)
	if err != nil {
		return Side{}, errors.FromFS(err)
	}
	return Side{Path: path, Content: string(data), Local: true}, nil
}
