package logging

import (
	"context"
	"time"

	apperrors "assetsync/internal/errors"
	"assetsync/internal/logger"
)

var reservedMetadataKeys = map[string]struct{}{
	"error_code":     {},
	"error_category": {},
	"error_message":  {},
	"operation":      {},
	"module":         {},
	"recoverable":    {},
	"error_time":     {},
	"error":          {},
}

// Error logs msg at error level with structured fields derived from err.
func Error(ctx context.Context, log logger.Logger, msg string, err error) {
	if log == nil {
		return
	}
	emit(ctx, log.ErrorContext, msg, err)
}

// Warn logs msg at warn level. Recoverable failures (transport, parse,
// per-item batch errors) are reported this way.
func Warn(ctx context.Context, log logger.Logger, msg string, err error) {
	if log == nil {
		return
	}
	emit(ctx, log.WarnContext, msg, err)
}

// Debug logs msg at debug level, used for failures of silent checks.
func Debug(ctx context.Context, log logger.Logger, msg string, err error) {
	if log == nil {
		return
	}
	emit(ctx, log.DebugContext, msg, err)
}

func emit(ctx context.Context, fn func(context.Context, string, ...logger.Field), msg string, err error) {
	if appErr, ok := apperrors.As(err); ok {
		fn(ctx, msg, Fields(appErr)...)
		return
	}
	if err != nil {
		fn(ctx, msg, logger.Error(err))
		return
	}
	fn(ctx, msg)
}

// Fields converts an AppError into fields for structured logging.
func Fields(appErr *apperrors.AppError) []logger.Field {
	if appErr == nil {
		return nil
	}

	fields := make([]logger.Field, 0, len(appErr.Metadata)+8)

	if appErr.Code != "" {
		fields = append(fields, logger.String("error_code", appErr.Code))
	}
	if appErr.Category != "" {
		fields = append(fields, logger.String("error_category", string(appErr.Category)))
	}
	if appErr.Message != "" {
		fields = append(fields, logger.String("error_message", appErr.Message))
	}
	if appErr.Operation != "" {
		fields = append(fields, logger.String("operation", appErr.Operation))
	}
	if appErr.Module != "" {
		fields = append(fields, logger.String("module", appErr.Module))
	}
	if appErr.Err != nil {
		fields = append(fields, logger.Error(appErr.Err))
	}

	fields = append(fields, logger.String("error_time", appErr.TimestampOrNow().Format(time.RFC3339Nano)))
	fields = append(fields, logger.Any("recoverable", appErr.Recoverable))

	for k, v := range appErr.Metadata {
		if _, reserved := reservedMetadataKeys[k]; reserved {
			continue
		}
		fields = append(fields, logger.Any(k, v))
	}

	return fields
}
