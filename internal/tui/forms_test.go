package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageNumber(t *testing.T) {
	n, err := ParsePageNumber(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = ParsePageNumber("0")
	assert.EqualError(t, err, "page must be 1 or greater")

	_, err = ParsePageNumber("two")
	assert.EqualError(t, err, `not a number: "two"`)
}
