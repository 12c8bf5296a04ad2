package updater

import "assetsync/internal/manifest"

// NoticeKind classifies a user-facing notification.
type NoticeKind string

const (
	NoticeAvailable  NoticeKind = "available"
	NoticeUpToDate   NoticeKind = "up-to-date"
	NoticeFailed     NoticeKind = "failed"
	NoticeDownloaded NoticeKind = "downloaded"
)

// Notice is emitted for the host UI to surface.
type Notice struct {
	Class          manifest.Class
	Kind           NoticeKind
	Count          int
	Failed         int
	Critical       bool
	RequiresReload bool
	Err            error
}

// Notifier receives notices. It must not block.
type Notifier func(Notice)
