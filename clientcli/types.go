package clientcli

import "time"

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	RemotePath  string // empty = <random collection>/<base name of LocalPath>
	ContentType string // optional, auto-detect if empty
	Quota       int64  // 0 = no eviction
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath   string `json:"local_path"`
	RemotePath  string `json:"remote_path"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	RemotePath string
	LocalPath  string // empty = derive from remote, "-" = stdout
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	RemotePath         string    `json:"remote_path"`
	LocalPath          string    `json:"local_path"`
	ContentType        string    `json:"content_type"`
	ContentDisposition string    `json:"content_disposition,omitempty"`
	LastModified       time.Time `json:"last_modified,omitzero"`
	Size               int64     `json:"size_bytes"`
}

// SignResult is a signed upload URL as handed to an uploading client.
type SignResult struct {
	Path   string `json:"path"`
	Length int64  `json:"length"`
	Quota  int64  `json:"quota,omitempty"`
	URL    string `json:"url"`
}
