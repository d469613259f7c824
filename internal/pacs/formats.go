package pacs

import (
	"path/filepath"
	"strings"
)

// fileFormats is the closed extension table. Anything outside it is rejected
// at upload time with WrongUploadFormatError; the table is never extended at
// runtime.
var fileFormats = map[string]string{
	".jpg":   "JPEG",
	".jpeg":  "JPEG",
	".png":   "PNG",
	".nii":   "NIFTI",
	".gz":    "compressed (NIFTI)",
	".dcm":   "DICOM",
	".tiff":  "TIFF",
	".csv":   "CSV",
	".json":  "JSON",
	".txt":   "TXT",
	".gif":   "GIF",
	".pdf":   "PDF",
	".md":    "Markdown",
	".py":    "Python File",
	".ipynb": "Interactive Notebook",
	".svg":   "SVG",
}

// FormatForFilename maps a file name to its display format via the fixed
// extension table. Matching is case-insensitive. ok is false for unknown
// extensions and for names without an extension.
func FormatForFilename(name string) (format string, ok bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "", false
	}
	format, ok = fileFormats[ext]
	return format, ok
}
