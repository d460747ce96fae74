package tf

import (
	"context"
	"os"
	"testing"
	"time"

	"tfview/internal/changeset"
	"tfview/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   []Invocation
	results map[Command]*Result
	err     error
	ctxErr  bool
}

func (f *fakeRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	f.calls = append(f.calls, inv)
	if f.ctxErr {
		if _, ok := ctx.Deadline(); !ok {
			return nil, errors.Internal("expected deadline", nil)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[inv.Command]; ok {
		return res, nil
	}
	return &Result{}, nil
}

func TestInvocations(t *testing.T) {
	tests := []struct {
		name string
		inv  Invocation
		want []string
	}{
		{"status", StatusInvocation("/src/main"), []string{"status", "/src/main", "/format:brief", "/recursive"}},
		{"history", HistoryInvocation("$/P/a.ts", 15), []string{"history", "$/P/a.ts", "/format:detailed", "/stopafter:15", "/recursive"}},
		{"previous", PreviousVersionInvocation("$/P/a.ts", 42), []string{"history", "$/P/a.ts", "/format:detailed", "/v:42", "/stopafter:2"}},
		{"view latest", ViewInvocation("$/P/a.ts", ""), []string{"view", "$/P/a.ts"}},
		{"view at changeset", ViewInvocation("$/P/a.ts", changeset.VersionSpec(37)), []string{"view", "$/P/a.ts", "/version:C37"}},
		{"checkout flat", CheckoutInvocation("/src/a.ts", false), []string{"checkout", "/src/a.ts"}},
		{"checkout recursive", CheckoutInvocation("/src", true), []string{"checkout", "/src", "/recursive"}},
		{"get", GetInvocation("/src"), []string{"get", "/src", "/recursive"}},
		{"undo", UndoInvocation("/src/a.ts"), []string{"undo", "/src/a.ts", "/recursive"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.inv.Argv())
			assert.True(t, tt.inv.Command.Valid())
		})
	}
	assert.False(t, Command("merge").Valid())
}

func TestNewExecRunner_MissingPath(t *testing.T) {
	_, err := NewExecRunner("  ")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestExecRunner_RejectsUnknownCommand(t *testing.T) {
	r, err := NewExecRunner("/bin/true")
	require.NoError(t, err)
	_, err = r.Run(context.Background(), Invocation{Command: "merge"})
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r, err := NewExecRunner("/nonexistent/tfview-test-tf")
	require.NoError(t, err)
	_, err = r.Run(context.Background(), StatusInvocation("."))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeProcess, errors.TypeOf(err))
}

func TestParseStatus(t *testing.T) {
	output := "File name   Change Local path\n" +
		"----------- ------ ------------------------------\n" +
		"$/Proj/Main/src\n" +
		"overlay.ts  edit   /src/main/src/overlay.ts\n" +
		"new file.ts add    /src/main/src/new file.ts\n" +
		"\n" +
		"$/Proj/Main/docs\n" +
		"readme.md   delete /src/main/docs/readme.md\n" +
		"\n" +
		"3 change(s), 0 detected change(s)\n"

	res := ParseStatus(output)
	assert.True(t, res.HasPendingChanges)
	assert.Equal(t, []IncludedChange{
		{FileName: "overlay.ts", Action: "edit", FilePath: "/src/main/src/overlay.ts"},
		{FileName: "new file.ts", Action: "add", FilePath: "/src/main/src/new file.ts"},
		{FileName: "readme.md", Action: "delete", FilePath: "/src/main/docs/readme.md"},
	}, res.IncludedChanges)
}

func TestParseStatus_NonASCIINames(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want IncludedChange
	}{
		{
			name: "cjk",
			row:  "日本語.ts         edit   /src/main/src/日本語.ts",
			want: IncludedChange{FileName: "日本語.ts", Action: "edit", FilePath: "/src/main/src/日本語.ts"},
		},
		{
			name: "latin accent",
			row:  "café.ts        add    /src/main/src/café.ts",
			want: IncludedChange{FileName: "café.ts", Action: "add", FilePath: "/src/main/src/café.ts"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := "File name      Change Local path\n" +
				"-------------- ------ ------------------------------\n" +
				"$/Proj/Main/src\n" +
				tt.row + "\n" +
				"\n" +
				"1 change(s)\n"

			res := ParseStatus(output)
			require.Len(t, res.IncludedChanges, 1)
			assert.Equal(t, tt.want, res.IncludedChanges[0])
		})
	}
}

func TestParseStatus_StopsAtDetectedSection(t *testing.T) {
	output := "File name Change Local path\r\n" +
		"--------- ------ ---------\r\n" +
		"$/P\r\n" +
		"a.ts      edit   /w/a.ts\r\n" +
		"\r\n" +
		"Detected Changes:\r\n" +
		"b.ts      add    /w/b.ts\r\n"

	res := ParseStatus(output)
	require.Len(t, res.IncludedChanges, 1)
	assert.Equal(t, "/w/a.ts", res.IncludedChanges[0].FilePath)
}

func TestParseStatus_NoChanges(t *testing.T) {
	for _, out := range []string{NoPendingChanges + "\n", "", "garbage without a table"} {
		res := ParseStatus(out)
		assert.False(t, res.HasPendingChanges)
		assert.Empty(t, res.IncludedChanges)
	}
}

func TestClient_History(t *testing.T) {
	golden, err := os.ReadFile("../changeset/testdata/history_detailed.txt")
	require.NoError(t, err)

	runner := &fakeRunner{results: map[Command]*Result{CommandHistory: {Stdout: string(golden)}}}
	c := NewClient(runner, WithWorkingDir("/src/main"))

	changesets, err := c.History(context.Background(), "$/Proj/Main/src/overlay.ts", 15)
	require.NoError(t, err)
	require.Len(t, changesets, 2)
	assert.Equal(t, 42, changesets[0].ID)
	assert.Equal(t, "/src/main", runner.calls[0].Dir)
}

func TestClient_PropagatesProcessError(t *testing.T) {
	runner := &fakeRunner{err: errors.ProcessError("view", 100, "item not found", nil)}
	c := NewClient(runner)

	_, err := c.View(context.Background(), "$/P/x", changeset.VersionSpec(3))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeProcess, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "item not found")
}

func TestClient_Timeout(t *testing.T) {
	runner := &fakeRunner{ctxErr: true, results: map[Command]*Result{CommandUndo: {Stdout: "Undoing edit: a.ts\n"}}}
	c := NewClient(runner, WithTimeout(time.Second))

	msg, err := c.Undo(context.Background(), "/w/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "Undoing edit: a.ts", msg)
}
