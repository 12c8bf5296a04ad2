package menu

import (
	"context"

	"assetsync/internal/session"
	"assetsync/internal/updater"
)

// MenuOption represents a selectable option shown to the user.
type MenuOption struct {
	Label       string
	Description string
	Handler     func() error
	Color       string
	Enabled     bool
}

// Controller is the update surface the menu drives.
type Controller interface {
	CheckForUpdates(ctx context.Context, silent bool) int
	DownloadUpdates(ctx context.Context) []updater.Summary
	State() []session.State
}

// Prompter reads user input.
type Prompter interface {
	Select(label string, items []string) (int, error)
	Confirm(label string) (bool, error)
	Wait(message string)
}
