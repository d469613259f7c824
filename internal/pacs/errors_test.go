package pacs_test

import (
	"errors"
	"testing"

	"pacs2go/internal/pacs"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "not found with subject",
			err:  &pacs.NotFoundError{Subject: `Project "Study1"`},
			want: `Project "Study1" could not be retrieved. Try again or contact us.`,
		},
		{
			name: "not found without subject",
			err:  &pacs.NotFoundError{},
			want: "Resource could not be retrieved. Try again or contact us.",
		},
		{
			name: "creation",
			err:  &pacs.CreationError{Subject: `project "Study1"`},
			want: `The creation of project "Study1" was unsuccessful. Please make sure that project "Study1" does not exist yet. Try again or contact us.`,
		},
		{
			name: "attribute update",
			err:  &pacs.AttributeUpdateError{Subject: "the description of project \"Study1\""},
			want: `Setting the description of project "Study1" was unsuccessful. Try again or contact us.`,
		},
		{
			name: "deletion",
			err:  &pacs.DeletionError{Subject: `file "scan.dcm"`},
			want: `Deletion of file "scan.dcm" was unsuccessful. Try again or contact us.`,
		},
		{
			name: "download",
			err:  &pacs.DownloadError{},
			want: "Download was unsuccessful. Try again or contact us.",
		},
		{
			name: "upload",
			err:  &pacs.UploadError{Subject: "scan.dcm"},
			want: "Upload of scan.dcm was unsuccessful. Try again or contact us.",
		},
		{
			name: "wrong upload format",
			err:  &pacs.WrongUploadFormatError{Subject: "raw.xyz"},
			want: "Upload of raw.xyz was unsuccessful. The format you tried to upload is not supported (yet). Please make sure that all files have valid file extensions.",
		},
		{
			name: "failed connection",
			err:  &pacs.FailedConnectionError{},
			want: "Connection to data server could not be established.",
		},
		{
			name: "failed disconnect",
			err:  &pacs.FailedDisconnectError{},
			want: "Disconnect from data server was unsuccessful.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	wrapped := []error{
		&pacs.FailedConnectionError{Cause: cause},
		&pacs.FailedDisconnectError{Cause: cause},
		&pacs.NotFoundError{Cause: cause},
		&pacs.CreationError{Cause: cause},
		&pacs.AttributeUpdateError{Cause: cause},
		&pacs.DeletionError{Cause: cause},
		&pacs.DownloadError{Cause: cause},
		&pacs.UploadError{Cause: cause},
		&pacs.PersistenceError{Op: "insert", Cause: cause},
	}
	for _, err := range wrapped {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
}
