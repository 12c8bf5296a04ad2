package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	err := TransportError(CodeTransportStatus, "unexpected status", nil).
		WithModule("fetcher").
		WithField("status", 503)

	assert.Equal(t, "[TRANSPORT:TRN-001] unexpected status", err.Error())
	assert.True(t, err.Recoverable)
	assert.Equal(t, 503, err.Metadata["status"])

	wrapped := ParseError(CodeParseManifest, "bad manifest", stdErrors.New("eof"))
	assert.Equal(t, "[PARSE:PRS-001] bad manifest: eof", wrapped.Error())
}

func TestClassification(t *testing.T) {
	transport := fmt.Errorf("outer: %w", TransportError(CodeTransportGeneric, "down", nil))
	parse := ParseError(CodeParseManifest, "bad", nil)
	storage := StorageError(CodeStorageGeneric, "disk", nil)

	assert.True(t, IsTransport(transport))
	assert.True(t, IsFetchFailure(transport))
	assert.True(t, IsParse(parse))
	assert.True(t, IsFetchFailure(parse))
	assert.False(t, IsFetchFailure(storage))
	assert.False(t, IsFetchFailure(stdErrors.New("plain")))
}

func TestMetadataClone(t *testing.T) {
	m := Metadata{"a": 1}
	c := m.Clone()
	c["b"] = 2
	assert.Len(t, m, 1)
	assert.Nil(t, Metadata{}.Clone())
}
