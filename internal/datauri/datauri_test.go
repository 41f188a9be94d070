package datauri_test

import (
	"testing"

	"github.com/kiranshivaraju/pixelrelay/internal/datauri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,aGk=", datauri.Encode("image/png", []byte("hi")))
	assert.Equal(t, "data:image/jpeg;base64,aGk=", datauri.Encode("", []byte("hi")))
}

func TestSplit(t *testing.T) {
	mt, payload, ok := datauri.Split("data:image/webp;base64,AAAA")
	assert.True(t, ok)
	assert.Equal(t, "image/webp", mt)
	assert.Equal(t, "AAAA", payload)

	mt, payload, ok = datauri.Split("AAAA")
	assert.False(t, ok)
	assert.Equal(t, datauri.DefaultMediaType, mt)
	assert.Equal(t, "AAAA", payload)

	_, _, ok = datauri.Split("data:image/png,notbase64")
	assert.False(t, ok)
}

func TestDecode_RoundTrip(t *testing.T) {
	uri := datauri.Encode("image/png", []byte{0x89, 'P', 'N', 'G'})
	mt, data, err := datauri.Decode(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestDecode_BareBase64(t *testing.T) {
	mt, data, err := datauri.Decode("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, datauri.DefaultMediaType, mt)
	assert.Equal(t, []byte("hello"), data)
}

func TestDecode_Malformed(t *testing.T) {
	_, _, err := datauri.Decode("data:image/png;base64,@@@")
	assert.ErrorIs(t, err, datauri.ErrMalformed)
}
