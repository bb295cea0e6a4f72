package enrich

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFile_StatsForExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	meta := File(path)
	assert.Equal(t, "5", meta[KeyFileSize])
	assert.NotEmpty(t, meta[KeyFileModified])
	assert.NotEmpty(t, meta[KeyFileMode])
}

func TestFile_MissingFileYieldsEmpty(t *testing.T) {
	assert.Empty(t, File("/does/not/exist"))
}

func TestContent_GoSource(t *testing.T) {
	source := "package main\n\n// entry point\nfunc main() {\n}\n"

	meta := Content("main.go", []byte(source))
	assert.Equal(t, "utf-8", meta[KeyEncoding])
	assert.Equal(t, "5", meta[KeyLineCount])
	assert.Equal(t, "1", meta[KeyCommentLines])
	assert.Equal(t, "1", meta[KeyBlankLines])
}

func TestContent_UnknownExtensionSkipsComments(t *testing.T) {
	meta := Content("notes.txt", []byte("one\ntwo\n"))
	assert.Equal(t, "2", meta[KeyLineCount])
	_, hasComments := meta[KeyCommentLines]
	assert.False(t, hasComments)
}

func TestContent_PNGImage(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 12, 8))
	require.NoError(t, png.Encode(&buf, img))

	meta := Content("chart.png", buf.Bytes())
	assert.Equal(t, "binary", meta[KeyEncoding])
	assert.Equal(t, "12", meta[KeyImageWidth])
	assert.Equal(t, "8", meta[KeyImageHeight])
	assert.Equal(t, "png", meta[KeyImageFormat])
}

func TestContent_JSONObjectTopLevelKeys(t *testing.T) {
	meta := Content("config.json", []byte(`{"name":"pulse","port":8080,"debug":false}`))
	assert.Equal(t, "3", meta[KeyKeyCount])
	assert.Equal(t, "debug,name,port", meta[KeyTopLevelKeys])
}

func TestContent_JSONArrayItemCount(t *testing.T) {
	meta := Content("rows.json", []byte(`[1,2,3,4]`))
	assert.Equal(t, "4", meta[KeyItemCount])
	_, hasKeys := meta[KeyTopLevelKeys]
	assert.False(t, hasKeys)
}

func TestContent_YAMLTopLevelKeys(t *testing.T) {
	meta := Content("deploy.yaml", []byte("replicas: 3\nimage: pulse:latest\n"))
	assert.Equal(t, "2", meta[KeyKeyCount])
	assert.Equal(t, "image,replicas", meta[KeyTopLevelKeys])
}

func TestContent_MalformedJSONSkipsShapeFields(t *testing.T) {
	meta := Content("broken.json", []byte(`{"unterminated`))
	_, hasCount := meta[KeyKeyCount]
	assert.False(t, hasCount)
	assert.Equal(t, "utf-8", meta[KeyEncoding])
}

func TestContent_CSVSheetCount(t *testing.T) {
	meta := Content("data.csv", []byte("a,b\n1,2\n"))
	assert.Equal(t, "1", meta[KeySheetCount])
}

func TestContent_WorkbookSheetNames(t *testing.T) {
	wb := excelize.NewFile()
	_, err := wb.NewSheet("Revenue")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	meta := Content("report.xlsx", buf.Bytes())
	assert.Equal(t, "2", meta[KeySheetCount])
	assert.Contains(t, meta[KeySheetNames], "Revenue")
}

func TestMerge_LaterValuesWin(t *testing.T) {
	out := Merge(
		map[string]string{"a": "1", "b": "2"},
		map[string]string{"b": "3"},
	)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, out)
}
