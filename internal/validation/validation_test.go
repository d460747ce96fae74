package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tfview/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangesetID(t *testing.T) {
	id, err := ChangesetID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, raw := range []string{"", "-1", "C42", "4.2"} {
		_, err := ChangesetID(raw)
		assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err), raw)
	}
}

func TestHistoryCount(t *testing.T) {
	n, err := HistoryCount("", 15)
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	n, err = HistoryCount("30", 15)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	for _, raw := range []string{"0", "1001", "x"} {
		_, err := HistoryCount(raw, 15)
		assert.Error(t, err, raw)
	}
}

func TestRequiredPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/history?path=%24%2FP%2Fa.ts", nil)
	p, err := RequiredPath(r, "path")
	require.NoError(t, err)
	assert.Equal(t, "$/P/a.ts", p)

	_, err = RequiredPath(httptest.NewRequest(http.MethodGet, "/api/history", nil), "path")
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestDecodeSelection(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ok", `{"path":"$/P/a.ts","picks":[10,20]}`, false},
		{"one pick", `{"path":"$/P/a.ts","picks":[10]}`, true},
		{"negative", `{"path":"$/P/a.ts","picks":[10,-2]}`, true},
		{"no path", `{"picks":[1,2]}`, true},
		{"garbage", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/diff/selection", strings.NewReader(tt.body))
			req, err := DecodeSelection(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []int{10, 20}, req.Picks)
		})
	}
}
