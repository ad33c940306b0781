package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sagarc03/xupload"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, result UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatSign(w io.Writer, result SignResult) error
	FormatUsage(w io.Writer, usage []xupload.CollectionUsage) error
	FormatEviction(w io.Writer, report xupload.EvictionReport) error
	FormatError(w io.Writer, err error) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats an upload result as human-readable text.
// In quiet mode only the download URL is printed.
func (f *HumanFormatter) FormatUpload(w io.Writer, result UploadResult) error {
	if f.Quiet {
		_, _ = fmt.Fprintln(w, result.URL)
		return nil
	}
	_, _ = fmt.Fprintf(w, "Uploaded: %s -> %s (%s)\n", result.LocalPath, result.RemotePath, formatSize(result.Size))
	_, _ = fmt.Fprintf(w, "  URL: %s\n", result.URL)
	return nil
}

// FormatDownload formats download result as human-readable text.
func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.RemotePath, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.RemotePath, result.LocalPath, formatSize(result.Size))
	}
	_, _ = fmt.Fprintf(w, "  Content-Type: %s\n", result.ContentType)
	return nil
}

// FormatSign prints the signed URL. Quiet mode prints nothing else.
func (f *HumanFormatter) FormatSign(w io.Writer, result SignResult) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "Path:   %s\n", result.Path)
		_, _ = fmt.Fprintf(w, "Length: %d\n", result.Length)
		if result.Quota > 0 {
			_, _ = fmt.Fprintf(w, "Quota:  %s\n", formatSize(result.Quota))
		}
	}
	_, _ = fmt.Fprintln(w, result.URL)
	return nil
}

// FormatUsage prints one row per collection plus a total.
func (f *HumanFormatter) FormatUsage(w io.Writer, usage []xupload.CollectionUsage) error {
	if len(usage) == 0 {
		if !f.Quiet {
			_, _ = fmt.Fprintln(w, "No collections found.")
		}
		return nil
	}

	maxNameLen := 10 // "COLLECTION"
	for i := range usage {
		if len(usage[i].Name) > maxNameLen {
			maxNameLen = len(usage[i].Name)
		}
	}
	if maxNameLen > 60 {
		maxNameLen = 60
	}

	_, _ = fmt.Fprintf(w, "%-*s  %8s  %10s  %s\n", maxNameLen, "COLLECTION", "OBJECTS", "SIZE", "MODIFIED")

	var total int64
	for i := range usage {
		u := &usage[i]
		name := u.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}
		_, _ = fmt.Fprintf(w, "%-*s  %8d  %10s  %s\n", maxNameLen, name, u.Objects, formatSize(u.Size), formatTime(u.ModTime))
		total += u.Size
	}

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\nTotal: %s in %d collections\n", formatSize(total), len(usage))
	}
	return nil
}

// FormatEviction summarizes a prune run.
func (f *HumanFormatter) FormatEviction(w io.Writer, report xupload.EvictionReport) error {
	for _, c := range report.Evicted {
		_, _ = fmt.Fprintf(w, "Evicted: %s (%d objects, %s)\n", c.Name, c.Objects, formatSize(c.Size))
	}
	if f.Quiet {
		return nil
	}
	if len(report.Evicted) == 0 {
		_, _ = fmt.Fprintf(w, "Nothing to evict (%s in use).\n", formatSize(report.Total))
		return nil
	}
	_, _ = fmt.Fprintf(w, "Freed %s of %s.\n", formatSize(report.Freed), formatSize(report.Total))
	if report.Overflow > report.Freed {
		_, _ = fmt.Fprintf(w, "Warning: still %s over budget.\n", formatSize(report.Overflow-report.Freed))
	}
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload formats an upload result as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, result UploadResult) error {
	return writeJSON(w, result)
}

// FormatDownload formats download result as JSON.
func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

// FormatSign formats a signed URL as JSON.
func (f *JSONFormatter) FormatSign(w io.Writer, result SignResult) error {
	return writeJSON(w, result)
}

type jsonCollection struct {
	Name     string    `json:"name"`
	Objects  int       `json:"objects"`
	Size     int64     `json:"size_bytes"`
	Modified time.Time `json:"modified,omitzero"`
}

func toJSONCollections(usage []xupload.CollectionUsage) []jsonCollection {
	out := make([]jsonCollection, len(usage))
	for i, u := range usage {
		out[i] = jsonCollection{Name: u.Name, Objects: u.Objects, Size: u.Size, Modified: u.ModTime}
	}
	return out
}

// FormatUsage formats collection usage as JSON.
func (f *JSONFormatter) FormatUsage(w io.Writer, usage []xupload.CollectionUsage) error {
	output := struct {
		Collections []jsonCollection `json:"collections"`
	}{
		Collections: toJSONCollections(usage),
	}
	return writeJSON(w, output)
}

// FormatEviction formats a prune report as JSON.
func (f *JSONFormatter) FormatEviction(w io.Writer, report xupload.EvictionReport) error {
	output := struct {
		Total    int64            `json:"total_bytes"`
		Overflow int64            `json:"overflow_bytes"`
		Freed    int64            `json:"freed_bytes"`
		Evicted  []jsonCollection `json:"evicted"`
	}{
		Total:    report.Total,
		Overflow: report.Overflow,
		Freed:    report.Freed,
		Evicted:  toJSONCollections(report.Evicted),
	}
	return writeJSON(w, output)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
