package document

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDeterministic(t *testing.T) {
	doc, errs := Build(completeInput())
	require.Empty(t, errs)

	first, err := Encode(doc)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Encode(doc)
		require.NoError(t, err)
		assert.Equal(t, first.Payload, again.Payload)
		assert.Equal(t, first.HashHex, again.HashHex)
	}

	// Rebuilding the identical logical document must also be byte-stable.
	rebuilt, errs := Build(completeInput())
	require.Empty(t, errs)
	encodedRebuilt, err := Encode(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, first.Payload, encodedRebuilt.Payload)
	assert.Equal(t, first.HashHex, encodedRebuilt.HashHex)
}

func TestEncodeHashMatchesPayload(t *testing.T) {
	doc, errs := Build(completeInput())
	require.Empty(t, errs)

	enc, err := Encode(doc)
	require.NoError(t, err)

	sum := sha256.Sum256(enc.Payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), enc.HashHex)

	decoded, err := base64.StdEncoding.DecodeString(enc.PayloadBase64)
	require.NoError(t, err)
	assert.Equal(t, enc.Payload, decoded)
}
