package api

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageHasMoreBoundaries(t *testing.T) {
	tests := []struct {
		name            string
		page, size, tot int
		hasMore         bool
		nextPage        int
	}{
		{"first of three", 1, 10, 25, true, 2},
		{"exact last page", 2, 10, 20, false, 0},
		{"one past boundary", 2, 10, 21, true, 3},
		{"partial last page", 3, 10, 25, false, 0},
		{"past the end", 9, 10, 25, false, 0},
		{"empty", 1, 10, 0, false, 0},
		{"huge page", math.MaxInt / 2, 10, 25, false, 0},
		{"last representable page", math.MaxInt, 10, math.MaxInt, false, 0},
		{"before huge total", math.MaxInt / 20, 10, math.MaxInt, true, math.MaxInt/20 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage(nil, tt.page, tt.size, tt.tot)
			assert.Equal(t, tt.hasMore, p.HasMore)
			assert.Equal(t, tt.nextPage, p.NextPage)
			assert.NotNil(t, p.Items)
		})
	}
}

func TestPageFind(t *testing.T) {
	p := NewPage([]Post{{ID: 4, Title: "four"}, {ID: 5}}, 1, 10, 2)
	post, ok := p.Find(4)
	assert.True(t, ok)
	assert.Equal(t, "four", post.Title)
	_, ok = p.Find(6)
	assert.False(t, ok)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 3, PageCount(25, 10))
	assert.Equal(t, 2, PageCount(20, 10))
	assert.Equal(t, 0, PageCount(0, 10))
	assert.Equal(t, 0, PageCount(5, 0))
	assert.Equal(t, math.MaxInt/10+1, PageCount(math.MaxInt, 10))
}

func TestPageOffsetSaturates(t *testing.T) {
	assert.Equal(t, 0, pageOffset(1, 10))
	assert.Equal(t, 20, pageOffset(3, 10))

	off := pageOffset(math.MaxInt, 10)
	assert.Positive(t, off)
	assert.LessOrEqual(t, off, math.MaxInt-10)
}
