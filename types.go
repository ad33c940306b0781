package xupload

import (
	"io"
	"time"
)

const (
	// DefaultContentType is stored when an upload does not declare one.
	DefaultContentType = "application/octet-stream"

	// DataSuffix marks the artifact holding the uploaded bytes.
	DataSuffix = ".data"
	// MetaSuffix marks the JSON metadata artifact, written last.
	MetaSuffix = ".meta"
)

// Metadata is the record persisted next to every data artifact.
type Metadata struct {
	Headers map[string]string `json:"headers"`
}

// NewMetadata builds the metadata record for an upload with the given content type.
func NewMetadata(contentType string) Metadata {
	if contentType == "" {
		contentType = DefaultContentType
	}
	return Metadata{Headers: map[string]string{"Content-Type": contentType}}
}

// ContentType returns the stored content type, or "" when none was recorded.
func (m Metadata) ContentType() string {
	return m.Headers["Content-Type"]
}

// PutRequest carries everything a PUT supplies to the upload service.
type PutRequest struct {
	Path        string // route path as received, without the leading slash
	Length      int64  // declared Content-Length, 0 when absent
	ContentType string
	Signature   string // value of the v query parameter
	Quota       string // value of the q query parameter
}

// Object describes a stored object. Content is nil when the object was only stat'ed.
type Object struct {
	Location Location
	Metadata Metadata
	Size     int64
	ModTime  time.Time
	Content  io.ReadSeekCloser
}

// CollectionUsage is the accounted size of one collection directory.
type CollectionUsage struct {
	Name    string // root-relative path of the collection directory
	Size    int64  // sum of the data artifacts below it
	Objects int
	ModTime time.Time // most recent data artifact modification
}

// EvictionReport summarizes one quota enforcement pass.
type EvictionReport struct {
	Total    int64
	Overflow int64
	Evicted  []CollectionUsage
	Freed    int64
}
