package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"tfview/internal/errors"
	"tfview/internal/extension"
	"tfview/internal/logging"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger       = logging.Nop()
	configPath   string
	serverURL    string
	logLevel     string
	historyCount int
)

var rootCmd = &cobra.Command{
	Use:   "tfview",
	Short: "Browse pending changes and history of a TFS workspace",
	Long: `tfview drives the Team Foundation command-line client to show pending
changes, changeset history, and diffs between versions of a file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.NewLogger(logLevel)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		logger = l
		return nil
	},
}

func changesetArg(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errors.ValidationError("changeset id must be a positive integer", raw)
	}
	return id, nil
}

// pickChangesets asks the user to choose two changesets from the file's history.
func pickChangesets(ctx context.Context, b backend, path string) ([]int, error) {
	history, err := b.History(ctx, path, b.HistoryCount())
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, errors.ValidationError("need at least two changesets to compare", len(history))
	}

	options := make([]huh.Option[int], 0, len(history))
	for _, cs := range history {
		options = append(options, huh.NewOption(fmt.Sprintf("%d  %s  %s", cs.ID, cs.User, cs.Date), cs.ID))
	}

	var picks []int
	err = huh.NewMultiSelect[int]().
		Title("Select two changesets to compare").
		Options(options...).
		Limit(2).
		Validate(func(v []int) error {
			if len(v) != 2 {
				return fmt.Errorf("select exactly two changesets")
			}
			return nil
		}).
		Value(&picks).
		Run()
	if err != nil {
		return nil, err
	}
	return picks, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search for .tfview.yaml upward)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "use a running tfview server instead of calling tf directly")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().IntVarP(&historyCount, "count", "n", 0, "number of history entries to fetch")

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the pending-change service and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			cfg, err := extension.LoadConfig(configPath, dir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			l, err := logging.NewLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer l.Sync()

			ext, err := extension.New(cfg, l)
			if err != nil {
				return err
			}
			defer ext.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ext.Start(ctx)
			fmt.Printf("Serving %s on http://%s\n", cfg.Workspace.Root, cfg.Address())
			return ext.Serve(ctx)
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show pending changes in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			changes, err := b.Pending(cmd.Context())
			if err != nil {
				return fmt.Errorf("getting status: %w", err)
			}
			printPending(cmd.OutOrStdout(), changes)
			return nil
		},
	}

	var historyCmd = &cobra.Command{
		Use:   "history <path>",
		Short: "List recent changesets for a file or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			changesets, err := b.History(cmd.Context(), args[0], b.HistoryCount())
			if err != nil {
				return fmt.Errorf("getting history: %w", err)
			}
			printHistory(cmd.OutOrStdout(), changesets)
			return nil
		},
	}

	var changesetCmd = &cobra.Command{
		Use:   "changeset <path> <id>",
		Short: "Show the files a changeset touched, grouped by folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := changesetArg(args[1])
			if err != nil {
				return err
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			cs, err := b.Changeset(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			printChangeset(cmd.OutOrStdout(), cs)
			return nil
		},
	}

	var diffPreviousCmd = &cobra.Command{
		Use:   "diff-previous <path> <id>",
		Short: "Diff a file at a changeset against its previous version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := changesetArg(args[1])
			if err != nil {
				return err
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			d, err := b.DiffPrevious(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			printDiff(cmd.OutOrStdout(), d)
			return nil
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff <path> [id id]",
		Short: "Diff a file between two changesets, chosen interactively when omitted",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return fmt.Errorf("expected a path and either zero or two changeset ids")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			var picks []int
			if len(args) == 3 {
				for _, raw := range args[1:] {
					id, err := changesetArg(raw)
					if err != nil {
						return err
					}
					picks = append(picks, id)
				}
			} else if picks, err = pickChangesets(cmd.Context(), b, args[0]); err != nil {
				return err
			}
			d, err := b.DiffSelection(cmd.Context(), args[0], picks)
			if err != nil {
				return err
			}
			printDiff(cmd.OutOrStdout(), d)
			return nil
		},
	}

	var diffLatestCmd = &cobra.Command{
		Use:   "diff-latest <local-path>",
		Short: "Diff a pending file against the latest server version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			d, err := b.DiffLatest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printDiff(cmd.OutOrStdout(), d)
			return nil
		},
	}

	var diffLocalCmd = &cobra.Command{
		Use:   "diff-local <path> <id>",
		Short: "Diff a file at a changeset against the working copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := changesetArg(args[1])
			if err != nil {
				return err
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			d, err := b.DiffWorkspace(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			printDiff(cmd.OutOrStdout(), d)
			return nil
		},
	}

	action := func(name, short string, recursiveFlag bool) *cobra.Command {
		var recursive bool
		c := &cobra.Command{
			Use:   name + " <path>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := openBackend()
				if err != nil {
					return err
				}
				msg, err := b.Action(cmd.Context(), name, args[0], recursive)
				if err != nil {
					return err
				}
				logger.Debug("action finished", zap.String("action", name), zap.String("path", args[0]))
				if msg != "" {
					fmt.Fprintln(cmd.OutOrStdout(), msg)
				}
				return nil
			},
		}
		if recursiveFlag {
			c.Flags().BoolVarP(&recursive, "recursive", "r", false, "apply to everything under a folder")
		}
		return c
	}

	rootCmd.AddCommand(serveCmd, statusCmd, historyCmd, changesetCmd,
		diffPreviousCmd, diffCmd, diffLatestCmd, diffLocalCmd,
		action("checkout", "Check out a file or folder for edit", true),
		action("get", "Get the latest version of a file or folder", false),
		action("undo", "Undo pending changes on a file or folder", false),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
