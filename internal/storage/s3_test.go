package storage

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/apperr"
)

// Smallest valid PNG header plus IHDR chunk start.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDecodeImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngBytes)

	data, ct, err := DecodeImage(raw)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, pngBytes, data)

	_, ct, err = DecodeImage("data:image/png;base64," + raw)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
}

func TestDecodeImageRejects(t *testing.T) {
	_, _, err := DecodeImage("%%%")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = DecodeImage(base64.StdEncoding.EncodeToString([]byte("just some text")))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
