package host

import (
	"context"
	stdErrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"assetsync/internal/data"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/manifest"
)

const (
	fileRefScheme  = "file://"
	storeRefScheme = "store://"
	tempSuffix     = ".part"
)

// FileBlobs stores payloads as files below a root directory. Writes go to a
// temporary sibling first and are renamed into place.
type FileBlobs struct {
	root string
	fs   FileSystem
}

// NewFileBlobs returns a FileBlobs rooted at root.
func NewFileBlobs(root string, fs FileSystem) *FileBlobs {
	if fs == nil {
		fs = OSFileSystem{}
	}
	return &FileBlobs{root: root, fs: fs}
}

// Path returns the file that holds the payload for identifier.
func (b *FileBlobs) Path(class manifest.Class, identifier string) string {
	return filepath.Join(b.root, string(class), safeRelative(identifier))
}

func (b *FileBlobs) Save(ctx context.Context, class manifest.Class, identifier string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := b.Path(class, identifier)
	if stage, err := writeAtomic(b.fs, target, payload); err != nil {
		appErr := blobError(string(stage), err, "Save", identifier)
		var conflict *PathConflictError
		if stdErrors.As(err, &conflict) {
			appErr = appErr.WithField("conflict", conflict.Existing)
		}
		return "", appErr
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return fileRefScheme + filepath.ToSlash(abs), nil
}

func (b *FileBlobs) Load(ctx context.Context, class manifest.Class, identifier string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	file, err := b.fs.Open(b.Path(class, identifier))
	if err != nil {
		if stdErrors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, blobError("failed to open blob file", err, "Load", identifier)
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, false, blobError("failed to read blob file", err, "Load", identifier)
	}
	return payload, true, nil
}

// KVBlobs stores payloads inside a key-value backend.
type KVBlobs struct {
	kv data.KeyValue
}

// NewKVBlobs returns a KVBlobs over kv.
func NewKVBlobs(kv data.KeyValue) *KVBlobs {
	return &KVBlobs{kv: kv}
}

// BlobKey is the key under which a payload is stored.
func BlobKey(class manifest.Class, identifier string) string {
	return "blob/" + string(class) + "/" + identifier
}

func (b *KVBlobs) Save(ctx context.Context, class manifest.Class, identifier string, payload []byte) (string, error) {
	if err := b.kv.Persist(ctx, BlobKey(class, identifier), payload); err != nil {
		return "", blobError("failed to persist blob", err, "Save", identifier)
	}
	return storeRefScheme + string(class) + "/" + identifier, nil
}

func (b *KVBlobs) Load(ctx context.Context, class manifest.Class, identifier string) ([]byte, bool, error) {
	payload, ok, err := b.kv.Retrieve(ctx, BlobKey(class, identifier))
	if err != nil {
		return nil, false, blobError("failed to retrieve blob", err, "Load", identifier)
	}
	return payload, ok, nil
}

// safeRelative turns an identifier into a relative path that cannot escape
// the blob root.
func safeRelative(identifier string) string {
	parts := strings.FieldsFunc(filepath.ToSlash(identifier), func(r rune) bool { return r == '/' })
	kept := parts[:0]
	for _, p := range parts {
		if p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "_"
	}
	return filepath.Join(kept...)
}

func blobError(message string, err error, operation, identifier string) *apperrors.AppError {
	return apperrors.StorageError(apperrors.CodeStorageBlob, message, err).
		WithModule("host").
		WithOperation(operation).
		WithField("identifier", identifier)
}

var (
	_ BlobStore = (*FileBlobs)(nil)
	_ BlobStore = (*KVBlobs)(nil)
)
