package pacs

import "fmt"

// The facade raises a closed set of domain errors. Transport and store
// failures are wrapped into one of these before they cross the facade
// boundary; the rendered messages are written for a non-technical reader
// because the UI shows them verbatim.

// FailedConnectionError means the remote archive session could not be
// established or has become unusable. Fatal to the whole Connection.
type FailedConnectionError struct {
	Cause error
}

func (e *FailedConnectionError) Error() string {
	return "Connection to data server could not be established."
}

func (e *FailedConnectionError) Unwrap() error { return e.Cause }

// FailedDisconnectError means session teardown failed. It is logged by the
// caller and must not mask an in-flight success.
type FailedDisconnectError struct {
	Cause error
}

func (e *FailedDisconnectError) Error() string {
	return "Disconnect from data server was unsuccessful."
}

func (e *FailedDisconnectError) Unwrap() error { return e.Cause }

// NotFoundError means an entity is absent from one or both stores. Always
// recoverable by the caller (e.g. fall through to create logic).
type NotFoundError struct {
	Subject string
	Cause   error
}

func (e *NotFoundError) Error() string {
	if e.Subject == "" {
		return "Resource could not be retrieved. Try again or contact us."
	}
	return fmt.Sprintf("%s could not be retrieved. Try again or contact us.", e.Subject)
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// CreationError means creation failed on either store. No partial entity is
// ever returned alongside it.
type CreationError struct {
	Subject string
	Cause   error
}

func (e *CreationError) Error() string {
	if e.Subject == "" {
		return "The creation was unsuccessful. Try again or contact us."
	}
	return fmt.Sprintf("The creation of %s was unsuccessful. Please make sure that %s does not exist yet. Try again or contact us.", e.Subject, e.Subject)
}

func (e *CreationError) Unwrap() error { return e.Cause }

// AttributeUpdateError means a setter failed; the entity's in-memory state
// may now disagree with storage and the caller should re-fetch.
type AttributeUpdateError struct {
	Subject string
	Cause   error
}

func (e *AttributeUpdateError) Error() string {
	if e.Subject == "" {
		return "Attribute update was unsuccessful. Try again or contact us."
	}
	return fmt.Sprintf("Setting %s was unsuccessful. Try again or contact us.", e.Subject)
}

func (e *AttributeUpdateError) Unwrap() error { return e.Cause }

// DeletionError means a delete failed on either store.
type DeletionError struct {
	Subject string
	Cause   error
}

func (e *DeletionError) Error() string {
	if e.Subject == "" {
		return "Deletion was unsuccessful. Try again or contact us."
	}
	return fmt.Sprintf("Deletion of %s was unsuccessful. Try again or contact us.", e.Subject)
}

func (e *DeletionError) Unwrap() error { return e.Cause }

// DownloadError means an export or zip assembly failed partway.
type DownloadError struct {
	Cause error
}

func (e *DownloadError) Error() string {
	return "Download was unsuccessful. Try again or contact us."
}

func (e *DownloadError) Unwrap() error { return e.Cause }

// UploadError is a generic upload failure not otherwise classified.
type UploadError struct {
	Subject string
	Cause   error
}

func (e *UploadError) Error() string {
	if e.Subject == "" {
		return "Upload was unsuccessful. Try again or contact us."
	}
	return fmt.Sprintf("Upload of %s was unsuccessful. Try again or contact us.", e.Subject)
}

func (e *UploadError) Unwrap() error { return e.Cause }

// WrongUploadFormatError means the input file or archive shape was rejected
// before any store mutation: unrecognized extension, or an archive with more
// than one top-level folder.
type WrongUploadFormatError struct {
	Subject string
}

func (e *WrongUploadFormatError) Error() string {
	if e.Subject == "" {
		return "Format is not allowed. Please contact us."
	}
	return fmt.Sprintf("Upload of %s was unsuccessful. The format you tried to upload is not supported (yet). Please make sure that all files have valid file extensions.", e.Subject)
}

// PersistenceError is raised by MetadataStore implementations on constraint
// violations (duplicate key, missing parent). The facade wraps it into one of
// the domain errors above; it never reaches callers directly.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }
