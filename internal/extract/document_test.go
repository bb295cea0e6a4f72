package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentExtractor_SplitsIntoLineWindows(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 250; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}

	e := NewDocumentExtractor()
	units, err := e.Extract(context.Background(), &Input{
		Path: "notes.txt",
		Data: []byte(b.String()),
	}, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, units, 3, "250 lines at window 100 yield 3 units")

	assert.Equal(t, "1", units[0].Attrs[AttrLineStart])
	assert.Equal(t, "100", units[0].Attrs[AttrLineEnd])
	assert.Equal(t, "201", units[2].Attrs[AttrLineStart])
	assert.Equal(t, "250", units[2].Attrs[AttrLineEnd])

	assert.True(t, strings.HasPrefix(units[1].Text, "line 101"))
	assert.False(t, strings.Contains(units[1].Text, "line 100"), "windows do not overlap")
}

func TestDocumentExtractor_BinaryYieldsNoUnits(t *testing.T) {
	e := NewDocumentExtractor()
	units, err := e.Extract(context.Background(), &Input{
		Path: "blob.dat",
		Data: []byte{0x00, 0x01, 0x02, 0xff},
	}, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestDocumentExtractor_BlankContentYieldsNoUnits(t *testing.T) {
	e := NewDocumentExtractor()
	units, err := e.Extract(context.Background(), &Input{
		Path: "blank.txt",
		Data: []byte("\n\n   \n"),
	}, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, units)
}
