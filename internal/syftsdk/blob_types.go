package syftsdk

import (
	"time"
)

// BlobInfo represents information about a blob
type BlobInfo struct {
	Key          string    `json:"key"`
	ETag         string    `json:"etag"`
	Size         int       `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// BlobURL represents a presigned URL for a blob
type BlobURL struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// BlobError represents an error for a specific blob operation
type BlobError struct {
	APIError
	Key string `json:"key"`
}

// ===================================================================================================

// UploadParams represents the parameters for uploading a blob
type UploadParams struct {
	Key      string
	FilePath string

	// ResumeDir is where multipart sessions are checkpointed. Defaults to a
	// temp dir when empty.
	ResumeDir string

	// Fingerprint invalidates a stale session when the file changed.
	// Defaults to "size:mtime_ns" of the file.
	Fingerprint string

	// PartSize overrides the default multipart part size.
	PartSize int64

	// PartUploadTimeout bounds each individual part PUT.
	PartUploadTimeout time.Duration

	// Callback receives cumulative progress.
	Callback func(uploadedBytes int64, totalBytes int64)

	// CheckPaused is polled between parts; while it returns true the
	// uploader idles instead of sending.
	CheckPaused func() bool

	// AdvancedCallback fires after each completed part with the full
	// session view.
	AdvancedCallback func(progress UploadProgress)
}

// UploadProgress is the per-part progress view of a multipart upload.
type UploadProgress struct {
	UploadedBytes  int64
	TotalBytes     int64
	PartSize       int64
	PartCount      int
	CompletedParts []int
}

// UploadResponse represents the response from a blob upload
type UploadResponse struct {
	Key          string `json:"key"`
	Version      string `json:"version"`
	ETag         string `json:"etag"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

// ===================================================================================================

// PresignedParams represents the parameters for getting presigned URLs
type PresignedParams struct {
	Keys []string `json:"keys"`
}

// PresignedResponse represents the response from a presigned URL request
type PresignedResponse struct {
	URLs   []*BlobURL   `json:"urls"`
	Errors []*BlobError `json:"errors"`
}

// ===================================================================================================

// DeleteParams represents the parameters for deleting blobs
type DeleteParams struct {
	Keys []string `json:"keys"`
}

// DeleteResponse represents the response from a blob delete operation
type DeleteResponse struct {
	Deleted []string     `json:"deleted"`
	Errors  []*BlobError `json:"errors"`
}

// ===================================================================================================

// MultipartUploadRequest initiates or resumes a multipart upload and
// requests presigned URLs for the listed part numbers.
type MultipartUploadRequest struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	PartSize    int64  `json:"partSize"`
	UploadID    string `json:"uploadId,omitempty"`
	PartNumbers []int  `json:"partNumbers"`
}

// MultipartUploadResponse carries the upload session and per-part URLs.
type MultipartUploadResponse struct {
	UploadID  string         `json:"uploadId"`
	Key       string         `json:"key"`
	PartSize  int64          `json:"partSize"`
	PartCount int            `json:"partCount"`
	URLs      map[int]string `json:"urls"`
}

// CompletedPart identifies one uploaded part for completion.
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// CompleteMultipartUploadRequest finalizes a multipart upload.
type CompleteMultipartUploadRequest struct {
	Key      string           `json:"key"`
	UploadID string           `json:"uploadId"`
	Parts    []*CompletedPart `json:"parts"`
}

// AbortMultipartRequest abandons a multipart upload.
type AbortMultipartRequest struct {
	Key      string `json:"key"`
	UploadID string `json:"uploadId"`
}
