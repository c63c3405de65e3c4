package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// MaxResultChars caps the serialized size of a tool result before it is
// handed back to the model.
const MaxResultChars = 15000

// Shape serializes a tool's return value into the tool_result payload
// blocks plus the display string carried on tool-result events. A
// screenshot read becomes a [text, image] pair so the model sees the
// pixels; every other result is a single JSON text block, truncated at
// MaxResultChars with a tail marker.
func Shape(result interface{}) ([]types.ContentBlock, string) {
	if r, ok := result.(*vfs.ReadResult); ok && r.IsScreenshot {
		if mediaType, data, ok := parseDataURL(r.Content); ok {
			text := fmt.Sprintf("Screenshot %s (version %d)", r.Path, r.Version)
			return []types.ContentBlock{types.TextBlock(text), types.ImageBlock(mediaType, data)}, text
		}
	}
	text := Truncate(encodeResult(result))
	return []types.ContentBlock{types.TextBlock(text)}, text
}

// ShapeError serializes a tool failure into the error object the model
// sees. Filesystem errors keep their kind and version fields so the model
// can recover (re-read on a version mismatch) instead of guessing.
func ShapeError(err error) ([]types.ContentBlock, string) {
	payload := map[string]interface{}{"error": err.Error()}
	var vfsErr *vfs.Error
	if errors.As(err, &vfsErr) {
		payload["kind"] = vfsErr.Kind
		if vfsErr.Path != "" {
			payload["path"] = vfsErr.Path
		}
		if vfsErr.Kind == vfs.ErrVersionMismatch {
			payload["expectedVersion"] = vfsErr.ExpectedVersion
			payload["actualVersion"] = vfsErr.ActualVersion
		}
	}
	text := Truncate(encodeResult(payload))
	return []types.ContentBlock{types.TextBlock(text)}, text
}

// Truncate cuts s at MaxResultChars on a rune boundary and appends a tail
// marker naming the original size.
func Truncate(s string) string {
	if len(s) <= MaxResultChars {
		return s
	}
	cut := MaxResultChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n... [truncated: showing first %d of %d characters]", cut, len(s))
}

func encodeResult(result interface{}) string {
	if result == nil {
		return "{}"
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error":"unserializable tool result: %v"}`, err)
	}
	return string(raw)
}

// parseDataURL splits a base64 data URL into media type and payload.
func parseDataURL(s string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(s, "data:")
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", "", false
	}
	mediaType = rest[:sep]
	data = rest[sep+len(";base64,"):]
	if mediaType == "" || data == "" {
		return "", "", false
	}
	return mediaType, data, true
}
