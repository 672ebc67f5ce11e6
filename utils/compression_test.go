package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("vector index payload ", 200))

	for _, algo := range []CompressionAlgorithm{CompressionNone, CompressionGzip, CompressionBrotli} {
		t.Run(string(algo), func(t *testing.T) {
			packed, err := CompressData(payload, algo)
			require.NoError(t, err)

			unpacked, err := DecompressData(packed, algo)
			require.NoError(t, err)
			assert.Equal(t, payload, unpacked)
		})
	}
}

func TestCompressionUnknownAlgorithm(t *testing.T) {
	_, err := CompressData([]byte("x"), "zstd")
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("load: %w", ErrDocumentNotFound), http.StatusNotFound},
		{fmt.Errorf("sniff: %w", ErrUnsupportedFileType), http.StatusUnsupportedMediaType},
		{ErrGenerationParseFailed, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: timeout", ErrGenerationUpstreamFailed), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := StatusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(fmt.Errorf("%w: bad xref", ErrExtractionFailed)))
	assert.True(t, IsPermanent(ErrUnsupportedFileType))
	assert.False(t, IsPermanent(ErrIndexBuildFailed))
}
