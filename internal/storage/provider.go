// Package storage keeps the original uploaded spreadsheets on disk.
package storage

import "time"

// UploadMeta is lightweight metadata about an archived upload.
type UploadMeta struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Provider is the interface for upload-archive operations. Paths are
// relative to the archive root; archived files are never mutated.
type Provider interface {
	// Write atomically stores content at path.
	Write(path string, content []byte) error
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// List returns metadata for every archived file under dir.
	List(dir string) ([]UploadMeta, error)
}
