package app

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"assetsync/internal/config"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/logger"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

const minFreeBytes = 64 * 1024 * 1024

type validation struct {
	name      string
	operation string
	category  apperrors.ErrorCategory
	fn        func() error
}

// EnvironmentValidator checks that the configured endpoints and storage
// locations are usable before anything is opened.
type EnvironmentValidator struct {
	config *config.Config
	logger logger.Logger
	statfs func(path string, st *unix.Statfs_t) error
}

// NewEnvironmentValidator constructs a validator instance.
func NewEnvironmentValidator(cfg *config.Config, log logger.Logger) *EnvironmentValidator {
	return &EnvironmentValidator{
		config: cfg,
		logger: log,
		statfs: unix.Statfs,
	}
}

// Validate executes the environment checks in order.
func (v *EnvironmentValidator) Validate() error {
	return v.runValidations([]validation{
		{"Manifest URLs", "validator.validateManifestURLs", apperrors.ErrCategoryConfig, v.validateManifestURLs},
		{"State directory", "validator.validateStateDirectory", apperrors.ErrCategoryStorage, v.validateStateDirectory},
		{"Disk Space", "validator.validateDiskSpace", apperrors.ErrCategorySystem, v.validateDiskSpace},
	})
}

func (v *EnvironmentValidator) runValidations(checks []validation) error {
	for _, check := range checks {
		if err := check.fn(); err != nil {
			if appErr, ok := apperrors.As(err); ok {
				return appErr
			}
			return v.wrapError(check.category, check.operation, check.name+" validation failed", err, nil)
		}
	}
	return nil
}

func (v *EnvironmentValidator) validateManifestURLs() error {
	classes := map[string]config.ClassConfig{
		"content": v.config.Content,
		"code":    v.config.Code,
	}
	for name, cc := range classes {
		if !cc.IsEnabled() {
			continue
		}
		u, err := url.Parse(cc.ManifestURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return v.wrapError(
				apperrors.ErrCategoryConfig,
				"validator.validateManifestURLs",
				"manifest URL must be an absolute http(s) URL",
				err,
				apperrors.Metadata{"class": name, "url": cc.ManifestURL},
			)
		}
	}
	return nil
}

func (v *EnvironmentValidator) validateStateDirectory() error {
	if strings.EqualFold(v.config.Storage.Backend, "memory") {
		return nil
	}
	dir := stateDir(v.config.Storage)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return v.wrapError(
			apperrors.ErrCategoryStorage,
			"validator.validateStateDirectory",
			"failed to create state directory",
			err,
			apperrors.Metadata{"path": dir},
		)
	}
	return nil
}

func (v *EnvironmentValidator) validateDiskSpace() error {
	if strings.EqualFold(v.config.Storage.Backend, "memory") {
		return nil
	}
	dir := stateDir(v.config.Storage)

	var stat unix.Statfs_t
	if err := v.statfs(dir, &stat); err != nil {
		return v.wrapError(
			apperrors.ErrCategorySystem,
			"validator.validateDiskSpace",
			"failed to get disk space information",
			err,
			apperrors.Metadata{"path": dir},
		)
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < minFreeBytes {
		return v.wrapError(
			apperrors.ErrCategorySystem,
			"validator.validateDiskSpace",
			"insufficient disk space",
			nil,
			apperrors.Metadata{
				"required":  humanize.IBytes(minFreeBytes),
				"available": humanize.IBytes(available),
			},
		)
	}

	v.logger.Debug("Disk available space: %s", humanize.IBytes(available))
	return nil
}

func (v *EnvironmentValidator) wrapError(category apperrors.ErrorCategory, operation, message string, err error, metadata apperrors.Metadata) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		if appErr.Module == "" {
			appErr.WithModule("environment-validator")
		}
		if operation != "" && appErr.Operation == "" {
			appErr.WithOperation(operation)
		}
		if metadata != nil {
			appErr.WithFields(metadata)
		}
		return appErr
	}

	return apperrors.New(category, errorCodeForCategory(category), message, err).
		WithModule("environment-validator").
		WithOperation(operation).
		WithFields(metadata)
}

// stateDir is the directory holding the key-value store.
func stateDir(s config.StorageConfig) string {
	if strings.EqualFold(s.Backend, "badger") {
		return s.Path
	}
	return filepath.Dir(s.Path)
}
