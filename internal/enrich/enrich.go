// Package enrich derives item-level metadata that extraction does not
// produce: filesystem stats, text shape measurements, image dimensions,
// workbook sheet inventories, and structured-data top-level shape. All
// enrichment is best-effort; a field that cannot be computed is simply
// absent.
package enrich

import (
	"bytes"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Metadata keys produced by this package.
const (
	KeyFileSize     = "file_size"
	KeyFileModified = "file_modified"
	KeyFileMode     = "file_mode"
	KeyLineCount    = "line_count"
	KeyCommentLines = "comment_lines"
	KeyBlankLines   = "blank_lines"
	KeyEncoding     = "encoding"
	KeyImageWidth   = "image_width"
	KeyImageHeight  = "image_height"
	KeyImageFormat  = "image_format"
	KeySheetNames   = "sheet_names"
	KeySheetCount   = "sheet_count"
	KeyTopLevelKeys = "top_level_keys"
	KeyKeyCount     = "key_count"
	KeyItemCount    = "item_count"
)

// maxListedNames bounds comma-joined name lists in metadata values.
const maxListedNames = 10

// commentPrefixes maps source extensions to their line comment marker.
var commentPrefixes = map[string]string{
	".go": "//", ".js": "//", ".jsx": "//", ".ts": "//", ".tsx": "//",
	".java": "//", ".c": "//", ".cpp": "//", ".rs": "//",
	".py": "#", ".rb": "#", ".sh": "#", ".yaml": "#", ".yml": "#",
}

// File returns filesystem metadata for a path. Missing files yield an
// empty map rather than an error; enrichment never fails ingestion.
func File(path string) map[string]string {
	info, err := os.Stat(path)
	if err != nil {
		return map[string]string{}
	}
	return map[string]string{
		KeyFileSize:     strconv.FormatInt(info.Size(), 10),
		KeyFileModified: info.ModTime().UTC().Format(time.RFC3339),
		KeyFileMode:     info.Mode().String(),
	}
}

// Content measures the shape of raw data: line, comment and blank line
// counts for known source extensions, encoding, workbook sheet names,
// and top-level key or item counts for JSON/YAML. Binary data reports
// encoding plus any format fields readable from the raw bytes.
func Content(path string, data []byte) map[string]string {
	meta := make(map[string]string)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		workbookMeta(data, meta)
	case ".csv", ".tsv":
		meta[KeySheetCount] = "1"
	case ".json", ".yaml", ".yml":
		structuredMeta(ext, data, meta)
	}

	if !utf8.Valid(data) || bytes.IndexByte(data, 0x00) >= 0 {
		meta[KeyEncoding] = "binary"
		if w, h, format, ok := imageDimensions(data); ok {
			meta[KeyImageWidth] = strconv.Itoa(w)
			meta[KeyImageHeight] = strconv.Itoa(h)
			meta[KeyImageFormat] = format
		}
		return meta
	}
	meta[KeyEncoding] = "utf-8"

	lines := strings.Split(string(data), "\n")
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	meta[KeyLineCount] = strconv.Itoa(len(lines))

	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
		}
	}
	meta[KeyBlankLines] = strconv.Itoa(blank)

	if prefix, ok := commentPrefixes[strings.ToLower(filepath.Ext(path))]; ok {
		comments := 0
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), prefix) {
				comments++
			}
		}
		meta[KeyCommentLines] = strconv.Itoa(comments)
	}

	return meta
}

// Merge overlays maps left to right; later values win.
func Merge(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func workbookMeta(data []byte, meta map[string]string) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	meta[KeySheetCount] = strconv.Itoa(len(sheets))
	if len(sheets) > maxListedNames {
		sheets = sheets[:maxListedNames]
	}
	meta[KeySheetNames] = strings.Join(sheets, ",")
}

func structuredMeta(ext string, data []byte, meta map[string]string) {
	var root any
	var err error
	if ext == ".json" {
		err = json.Unmarshal(data, &root)
	} else {
		err = yaml.Unmarshal(data, &root)
	}
	if err != nil {
		return
	}

	switch v := root.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		meta[KeyKeyCount] = strconv.Itoa(len(keys))
		if len(keys) > maxListedNames {
			keys = keys[:maxListedNames]
		}
		meta[KeyTopLevelKeys] = strings.Join(keys, ",")
	case []any:
		meta[KeyItemCount] = strconv.Itoa(len(v))
	}
}

func imageDimensions(data []byte) (w, h int, format string, ok bool) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", false
	}
	return cfg.Width, cfg.Height, format, true
}
