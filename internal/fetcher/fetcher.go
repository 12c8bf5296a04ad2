// Package fetcher retrieves remote manifests and asset payloads over a host
// transport.
package fetcher

import (
	"context"

	apperrors "assetsync/internal/errors"
	"assetsync/internal/host"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
)

// Asset is a fetched payload.
type Asset struct {
	Data   []byte
	Binary bool
}

// Text returns the payload as a string.
func (a Asset) Text() string {
	return string(a.Data)
}

// Fetcher turns transport responses into manifests and assets. Every failure
// it returns is either a TRANSPORT or a PARSE AppError, except hash mismatches
// which are VALIDATION errors.
type Fetcher struct {
	transport    host.Transport
	logger       logger.Logger
	verifyHashes bool
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithHashVerification enables digest checks on downloaded payloads.
func WithHashVerification(enabled bool) Option {
	return func(f *Fetcher) {
		f.verifyHashes = enabled
	}
}

// New returns a Fetcher over t.
func New(t host.Transport, log logger.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{transport: t, logger: log}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchManifest downloads and parses the manifest of class at url.
func (f *Fetcher) FetchManifest(ctx context.Context, class manifest.Class, url string) (*manifest.Manifest, error) {
	body, err := f.transport.FetchText(ctx, url)
	if err != nil {
		return nil, asFetchFailure(err, "failed to fetch manifest", "FetchManifest").
			WithField("class", string(class))
	}

	m, err := manifest.Parse(class, []byte(body), url)
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeParseManifest, "failed to parse remote manifest", err).
			WithModule("fetcher").
			WithOperation("FetchManifest").
			WithFields(apperrors.Metadata{
				"class": string(class),
				"url":   url,
			})
	}

	f.logger.DebugContext(ctx, "fetched manifest",
		logger.String("class", string(class)),
		logger.String("version", m.Version),
		logger.Int("entries", m.Len()),
	)
	return m, nil
}

// FetchAsset downloads the payload at url as bytes or text.
func (f *Fetcher) FetchAsset(ctx context.Context, url string, binary bool) (Asset, error) {
	if binary {
		data, err := f.transport.FetchBytes(ctx, url)
		if err != nil {
			return Asset{}, asFetchFailure(err, "failed to fetch asset", "FetchAsset")
		}
		return Asset{Data: data, Binary: true}, nil
	}

	text, err := f.transport.FetchText(ctx, url)
	if err != nil {
		return Asset{}, asFetchFailure(err, "failed to fetch asset", "FetchAsset")
	}
	return Asset{Data: []byte(text)}, nil
}

// FetchTransfer downloads the payload for p and, when enabled, checks it
// against the expected hash.
func (f *Fetcher) FetchTransfer(ctx context.Context, p manifest.PendingTransfer) (Asset, error) {
	asset, err := f.FetchAsset(ctx, p.SourceURL, p.Binary())
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			appErr.WithField("identifier", p.Identifier)
		}
		return Asset{}, err
	}

	if f.verifyHashes {
		if err := ValidateChecksum(asset.Data, p.ExpectedHash); err != nil {
			return Asset{}, apperrors.ValidationError(apperrors.CodeValidationHash, "downloaded payload failed hash verification", err).
				WithModule("fetcher").
				WithOperation("FetchTransfer").
				WithFields(apperrors.Metadata{
					"identifier": p.Identifier,
					"url":        p.SourceURL,
				})
		}
	}
	return asset, nil
}

// asFetchFailure keeps transport AppErrors as they are and classifies
// anything else as a TRANSPORT failure.
func asFetchFailure(err error, message, operation string) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok && apperrors.IsFetchFailure(appErr) {
		if appErr.Module == "" {
			appErr.WithModule("fetcher")
		}
		if appErr.Operation == "" {
			appErr.WithOperation(operation)
		}
		return appErr
	}
	return apperrors.TransportError(apperrors.CodeTransportGeneric, message, err).
		WithModule("fetcher").
		WithOperation(operation)
}
