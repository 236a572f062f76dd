package storage

import (
	"path"
	"strings"
)

// MimeTypeUnknown is the sentinel returned for names without a usable
// extension.
const MimeTypeUnknown = "application/octet-stream"

// mimeByExtension is the fixed extension→MIME lookup table. Matching is
// case-insensitive on the extension.
var mimeByExtension = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",

	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",

	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",

	".zip": "application/zip",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",
}

// InferMimeType maps a file name to a MIME type through the fixed extension
// table. It returns MimeTypeUnknown for empty or whitespace input, a name
// that is only a dot or ends in a dot, and any unknown extension.
func InferMimeType(fileName string) string {
	name := strings.TrimSpace(fileName)
	if name == "" || name == "." || strings.HasSuffix(name, ".") {
		return MimeTypeUnknown
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return MimeTypeUnknown
	}
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return MimeTypeUnknown
}
