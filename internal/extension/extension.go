// Package extension assembles the service: it owns the tf client, the pending
// repository and its poller, the save watcher, and the HTTP API.
package extension

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"tfview/internal/api"
	"tfview/internal/cache"
	"tfview/internal/config"
	"tfview/internal/content"
	"tfview/internal/events"
	"tfview/internal/history"
	"tfview/internal/logging"
	"tfview/internal/middleware"
	"tfview/internal/pending"
	"tfview/internal/resolve"
	"tfview/internal/tf"
	"tfview/internal/tree"
	"tfview/internal/watch"
	"tfview/internal/workspace"
	shared "tfview/shared/types"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	runner   tf.Runner
	inMemory bool
	watch    bool
}

type Option func(*options)

// WithRunner replaces the tf process runner.
func WithRunner(r tf.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithInMemoryDB keeps cached content and changesets in memory only.
func WithInMemoryDB() Option {
	return func(o *options) { o.inMemory = true }
}

// WithoutWatcher disables the edit-save watcher.
func WithoutWatcher() Option {
	return func(o *options) { o.watch = false }
}

type Extension struct {
	Config  *config.Config
	Logger  *logging.Logger
	Client  *tf.Client
	Pending *pending.Repository
	Poller  *pending.Poller
	Tree    *tree.Overlay
	Cache   *cache.Cache
	History *history.Store
	Stager  *content.Stager
	Hub     *events.Hub

	db      *badger.DB
	watcher *watch.Watcher
	handler http.Handler
	cancel  func()
	wg      sync.WaitGroup
}

// New validates cfg and builds every component. Nothing runs until Start.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Extension, error) {
	o := options{watch: true}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runner := o.runner
	if runner == nil {
		exec, err := tf.NewExecRunner(cfg.TfPath)
		if err != nil {
			return nil, err
		}
		runner = exec
	}

	dbPath := cfg.Database.Path
	if o.inMemory {
		dbPath = ""
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	e := &Extension{Config: cfg, Logger: logger, db: db}
	if err := e.build(runner, o); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Extension) build(runner tf.Runner, o options) error {
	cfg := e.Config
	root := cfg.Workspace.Root

	e.Client = tf.NewClient(runner,
		tf.WithTimeout(cfg.CommandTimeout()),
		tf.WithWorkingDir(root),
		tf.WithLogger(e.Logger.Named("tf")),
	)

	var err error
	e.Cache, err = cache.New(e.db, e.Client, cache.Options{Size: cfg.CacheSize}, e.Logger.Named("cache"))
	if err != nil {
		return err
	}
	e.History = history.NewStore(e.db)

	e.Pending = pending.NewRepository(e.Client, root, e.Logger.Named("pending"))
	e.Poller = pending.NewPoller(e.Pending, cfg.PollInterval(), e.Logger.Named("poller"))
	e.Tree = tree.NewOverlay(nil, root, e.Pending)

	e.Stager, err = content.NewStager(cfg.StagingDir)
	if err != nil {
		return err
	}

	e.Hub = events.NewHub(e.snapshotEvent, e.Logger.Named("events"))
	e.Pending.Subscribe(func(snap *pending.Snapshot) {
		e.Hub.Broadcast(shared.Event{Type: shared.EventPending, Changes: api.ToShared(snap)})
	})

	if o.watch {
		e.watcher, err = watch.New(root, func(string) { e.Poller.Trigger() }, e.Logger.Named("watch"))
		if err != nil {
			return err
		}
	}

	handler := api.NewHandler(api.Deps{
		Pending:      e.Pending,
		Tree:         e.Tree,
		History:      e.Client,
		Store:        e.History,
		Resolver:     resolve.New(e.Client, e.Cache, e.Logger.Named("resolve")),
		Stager:       e.Stager,
		Actions:      e.Client,
		Workspace:    workspace.NewMapping(root, cfg.Workspace.ServerRoot),
		Events:       e.Hub,
		HistoryCount: cfg.HistoryCount,
		OnChange:     e.Poller.Trigger,
		Logger:       e.Logger.Named("api"),
	})
	e.handler = middleware.Chain(
		handler.Routes(),
		middleware.RequestID,
		middleware.Logger(e.Logger),
		middleware.Recover(e.Logger),
	)
	return nil
}

func (e *Extension) snapshotEvent() shared.Event {
	return shared.Event{Type: shared.EventPending, Changes: api.ToShared(e.Pending.Changes())}
}

// Handler is the full HTTP surface with middleware applied.
func (e *Extension) Handler() http.Handler {
	return e.handler
}

// Start launches the poller and the save watcher. They stop when ctx is done or
// Close is called.
func (e *Extension) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Poller.Run(ctx)
	}()
	if e.watcher != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.watcher.Run(ctx)
		}()
	}
	e.Logger.Info("extension started",
		zap.String("root", e.Config.Workspace.Root),
		zap.Duration("poll_interval", e.Config.PollInterval()))
}

// Serve listens on the configured address until ctx is done, then shuts the
// server down gracefully.
func (e *Extension) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.Config.Address())
	if err != nil {
		return err
	}
	return e.ServeListener(ctx, ln)
}

func (e *Extension) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: e.handler, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		e.Logger.Info("starting server", zap.String("address", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops background work, removes staged diff files and releases the database.
func (e *Extension) Close() error {
	if e.cancel != nil {
		e.cancel()
	} else if e.watcher != nil {
		e.watcher.Close()
	}
	e.wg.Wait()
	if err := e.Stager.Cleanup(); err != nil {
		e.Logger.Warn("removing staged files", zap.Error(err))
	}
	return e.db.Close()
}
