package commands

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/postbrowser/internal/api"
)

func TestPageRangeSet(t *testing.T) {
	tests := []struct {
		in      string
		want    pageRange
		wantErr string
	}{
		{in: "1-3", want: pageRange{1, 3}},
		{in: "4", want: pageRange{4, 4}},
		{in: " 2-2 ", want: pageRange{2, 2}},
		{in: "1-50", want: pageRange{1, 50}},
		{in: "1-51", wantErr: "at most 50"},
		{in: "3-1", wantErr: "ends before"},
		{in: "0-2", wantErr: "page must be"},
		{in: "a-b", wantErr: "not a number"},
		{in: "2-", wantErr: "not a number"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var r pageRange
			err := r.Set(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r)
		})
	}
}

func TestPageRangeLen(t *testing.T) {
	var r pageRange
	require.NoError(t, r.Set(fmt.Sprintf("%d-%d", math.MaxInt-1, math.MaxInt)))
	assert.Equal(t, 2, r.Len())
	assert.Error(t, r.Set(fmt.Sprintf("1-%d", math.MaxInt)))
}

func TestPageRangeString(t *testing.T) {
	assert.Equal(t, "3", (&pageRange{3, 3}).String())
	assert.Equal(t, "1-4", (&pageRange{1, 4}).String())
	assert.Equal(t, 4, (&pageRange{1, 4}).Len())
}

func TestParsePostID(t *testing.T) {
	id, err := parsePostID("#42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = parsePostID("https://posts.test/posts/9")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	for _, in := range []string{"", "x", "-3", "0"} {
		_, err := parsePostID(in)
		assert.Error(t, err, in)
	}
}

func TestPageSummary(t *testing.T) {
	assert.Equal(t, "Page 1 of 3 (25 posts)", pageSummary(api.NewPage([]api.Post{{ID: 1}}, 1, 10, 25)))
	assert.Equal(t, "Page 4 has no posts", pageSummary(api.NewPage(nil, 4, 10, 25)))
	assert.Equal(t, 1, pageTotal(api.NewPage([]api.Post{{ID: 1}}, 1, 10, 1)))
	assert.Equal(t, 0, pageTotal(api.Page{}))
}

func TestReadToken(t *testing.T) {
	token, err := readToken(strings.NewReader("  abc123\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	token, err = readToken(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", token)
}
