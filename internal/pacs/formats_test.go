package pacs_test

import (
	"testing"

	"pacs2go/internal/pacs"
)

func TestFormatForFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"scan.dcm", "DICOM", true},
		{"SCAN.DCM", "DICOM", true},
		{"brain.nii", "NIFTI", true},
		{"brain.nii.gz", "compressed (NIFTI)", true},
		{"photo.jpeg", "JPEG", true},
		{"notes.md", "Markdown", true},
		{"analysis.ipynb", "Interactive Notebook", true},
		{"raw.xyz", "", false},
		{"noextension", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pacs.FormatForFilename(tt.name)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("FormatForFilename(%q) = %q, %v, want %q, %v",
					tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
