package domain

// Upload is an uploaded file before text extraction.
type Upload struct {
	// Name is the original file name.
	Name string

	// MIMEType is the detected content type. May be empty until detection runs.
	MIMEType string

	// Content is the raw file bytes.
	Content []byte
}
