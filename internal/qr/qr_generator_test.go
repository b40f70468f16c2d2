package qr

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkin/internal/scanner"
)

func TestEncodeTokenProducesPNG(t *testing.T) {
	gen := NewGenerator()

	png, err := gen.EncodeToken("aaa.bbb.ccc")
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}

func TestEnvelopeRoundTripsThroughScannerParser(t *testing.T) {
	// The displayed envelope and the device-side parser must agree, or
	// scanned passes would fall through to the manual-code path.
	raw, err := json.Marshal(Envelope{Token: "aaa.bbb.ccc"})
	require.NoError(t, err)

	payload := scanner.ParsePayload(string(raw))
	assert.Equal(t, "aaa.bbb.ccc", payload.Token)
	assert.Empty(t, payload.Code)
}
