package notify

import (
	"encoding/base64"
	"fmt"
	"io"
)

// DocumentUploadSizeLimit is the largest document the API accepts.
const DocumentUploadSizeLimit = 2 * 1024 * 1024

// UploadedDocument is a file prepared for sending as a personalisation value.
// The recipient receives a link to download it.
type UploadedDocument struct {
	File                       string  `json:"file"`
	Filename                   string  `json:"filename,omitempty"`
	ConfirmEmailBeforeDownload *bool   `json:"confirm_email_before_download"`
	RetentionPeriod            *string `json:"retention_period"`
}

// UploadOption configures PrepareUpload.
type UploadOption func(*UploadedDocument)

// WithFilename sets the filename shown to the recipient.
func WithFilename(name string) UploadOption {
	return func(d *UploadedDocument) {
		d.Filename = name
	}
}

// WithConfirmEmailBeforeDownload requires the recipient to confirm their email
// address before downloading.
func WithConfirmEmailBeforeDownload(confirm bool) UploadOption {
	return func(d *UploadedDocument) {
		d.ConfirmEmailBeforeDownload = &confirm
	}
}

// WithRetentionPeriod sets how long the file stays available, for example
// "52 weeks".
func WithRetentionPeriod(period string) UploadOption {
	return func(d *UploadedDocument) {
		d.RetentionPeriod = &period
	}
}

// PrepareUpload encodes data for use as a personalisation value. It fails with
// a *DocumentUploadError when data exceeds DocumentUploadSizeLimit.
func PrepareUpload(data []byte, opts ...UploadOption) (*UploadedDocument, error) {
	if len(data) > DocumentUploadSizeLimit {
		return nil, &DocumentUploadError{Message: "File is larger than 2MB"}
	}

	doc := &UploadedDocument{
		File: base64.StdEncoding.EncodeToString(data),
	}
	for _, opt := range opts {
		opt(doc)
	}
	return doc, nil
}

// PrepareUploadFrom reads r and calls PrepareUpload. It reads at most one byte
// past the size limit.
func PrepareUploadFrom(r io.Reader, opts ...UploadOption) (*UploadedDocument, error) {
	data, err := io.ReadAll(io.LimitReader(r, DocumentUploadSizeLimit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return PrepareUpload(data, opts...)
}
