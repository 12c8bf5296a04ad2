// Package manifest models versioned asset trees: the remote manifests that
// describe what a client should hold and the local record of what it does hold.
package manifest

import (
	"path"
	"strings"
	"time"
)

// Class identifies an independent asset class, each with its own manifest,
// store namespace and update session.
type Class string

const (
	ClassContent Class = "content"
	ClassCode    Class = "code"
)

// AssetKind determines how a downloaded asset is applied.
type AssetKind string

const (
	KindContent    AssetKind = "content"
	KindScript     AssetKind = "script"
	KindStylesheet AssetKind = "stylesheet"
)

// ParseAssetKind maps a manifest "type" value to an AssetKind, falling back
// to the file extension when the type is empty or unknown.
func ParseAssetKind(typ, file string) AssetKind {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "script", "js", "javascript":
		return KindScript
	case "stylesheet", "css", "style":
		return KindStylesheet
	case "content", "document":
		return KindContent
	}

	clean := file
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if strings.EqualFold(path.Ext(clean), ".css") {
		return KindStylesheet
	}
	return KindScript
}

// Entry is a leaf of a manifest tree describing one distributable asset.
type Entry struct {
	Identifier  string
	File        string
	ContentHash string
	Version     string
	SizeBytes   int64
	SourceURL   string
	Kind        AssetKind
	Critical    bool
	// Path holds the category and folder names leading to the leaf, ending
	// with the leaf's own key.
	Path []string
}

// HasFingerprint reports whether the entry carries a hash or a version.
// Entries without either cannot be reconciled.
func (e *Entry) HasFingerprint() bool {
	return strings.TrimSpace(e.ContentHash) != "" || strings.TrimSpace(e.Version) != ""
}

// Record is the persisted memory of the last successfully applied entry.
type Record struct {
	Identifier  string    `json:"identifier"`
	File        string    `json:"file,omitempty"`
	ContentHash string    `json:"hash,omitempty"`
	Version     string    `json:"version,omitempty"`
	Kind        AssetKind `json:"kind"`
	SizeBytes   int64     `json:"size,omitempty"`
	Critical    bool      `json:"critical,omitempty"`
	Path        []string  `json:"path,omitempty"`
	LocalRef    string    `json:"localPath,omitempty"`
	AppliedAt   time.Time `json:"downloadedAt"`
}

// PendingTransfer is a unit of work produced by reconciliation. It is never
// persisted.
type PendingTransfer struct {
	Identifier      string
	File            string
	SourceURL       string
	ExpectedHash    string
	ExpectedVersion string
	SizeBytes       int64
	Kind            AssetKind
	Critical        bool
	Path            []string
}

// PendingFromEntry builds the transfer for e.
func PendingFromEntry(e *Entry) PendingTransfer {
	return PendingTransfer{
		Identifier:      e.Identifier,
		File:            e.File,
		SourceURL:       e.SourceURL,
		ExpectedHash:    e.ContentHash,
		ExpectedVersion: e.Version,
		SizeBytes:       e.SizeBytes,
		Kind:            e.Kind,
		Critical:        e.Critical,
		Path:            append([]string(nil), e.Path...),
	}
}

// Binary reports whether the payload is fetched as raw bytes rather than text.
func (p PendingTransfer) Binary() bool {
	return p.Kind == KindContent
}

// Record converts a completed transfer into the record stored for it.
func (p PendingTransfer) Record(localRef string, at time.Time) Record {
	return Record{
		Identifier:  p.Identifier,
		File:        p.File,
		ContentHash: p.ExpectedHash,
		Version:     p.ExpectedVersion,
		Kind:        p.Kind,
		SizeBytes:   p.SizeBytes,
		Critical:    p.Critical,
		Path:        append([]string(nil), p.Path...),
		LocalRef:    localRef,
		AppliedAt:   at,
	}
}

// RecordSet answers "what do we hold for this identifier".
type RecordSet interface {
	Lookup(identifier string) (Record, bool)
}
