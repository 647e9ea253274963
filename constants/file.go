package constants

import "strings"

// Source formats the converter knows how to handle.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// OutputSuffix is appended to the source file stem to form the output
// file name. The source -> output mapping must stay deterministic; the
// batch driver's skip check depends on it.
const OutputSuffix = "_converted.txt"

// AllowedExtensions holds the default allowed file extensions for conversion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps an extension to a source format. Unknown extensions map to "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "bmp", "tif", "tiff":
		return IMAGE
	default:
		return ""
	}
}
