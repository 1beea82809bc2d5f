package result

import (
	"path/filepath"
	"strings"
)

// mimeTypes is the fixed extension table used when a gatekeeper does not
// declare a MIME type. Unknown extensions fall back to octet-stream.
var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

// MimeForName infers a MIME type from a filename's extension.
func MimeForName(name string) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}
