package tf

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"

	"tfview/internal/errors"
)

// Command is one of the tf subcommands this service drives.
type Command string

const (
	CommandStatus   Command = "status"
	CommandHistory  Command = "history"
	CommandView     Command = "view"
	CommandCheckout Command = "checkout"
	CommandGet      Command = "get"
	CommandUndo     Command = "undo"
)

func (c Command) Valid() bool {
	switch c {
	case CommandStatus, CommandHistory, CommandView, CommandCheckout, CommandGet, CommandUndo:
		return true
	}
	return false
}

// Options are the per-invocation flags shared by every command.
type Options struct {
	Recursive bool
}

// Invocation is a fully described tf call.
type Invocation struct {
	Command Command
	Args    []string
	Options Options
	Dir     string
}

// Argv renders the invocation as the tool's argument vector.
func (i Invocation) Argv() []string {
	argv := make([]string, 0, len(i.Args)+2)
	argv = append(argv, string(i.Command))
	argv = append(argv, i.Args...)
	if i.Options.Recursive {
		argv = append(argv, "/recursive")
	}
	return argv
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts executing tf so tests can substitute canned output.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// ExecRunner executes the tf binary at Path.
type ExecRunner struct {
	Path string
}

// NewExecRunner fails immediately when the tool path is unknown.
func NewExecRunner(path string) (*ExecRunner, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.ConfigError("unable to execute command: path to tf is unknown")
	}
	return &ExecRunner{Path: path}, nil
}

func (e *ExecRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if !inv.Command.Valid() {
		return nil, errors.ValidationError("unsupported tf command", string(inv.Command))
	}

	cmd := exec.CommandContext(ctx, e.Path, inv.Argv()...)
	if strings.TrimSpace(inv.Dir) != "" {
		cmd.Dir = inv.Dir
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	res := &Result{
		Stdout: out.String(),
		Stderr: errb.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, errors.ProcessError(string(inv.Command), res.ExitCode, strings.TrimSpace(res.Stderr), err)
		}
		// The process never started: missing or not executable.
		return res, errors.ProcessError(string(inv.Command), -1, err.Error(), err)
	}
	return res, nil
}
