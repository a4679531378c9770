package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestSealOpen(t *testing.T) {
	b, err := New(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)

	msg := "postgres://hablas:s3cr3t@db:5432/hablas"
	sealed, err := b.Seal(msg)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "s3cr3t")

	again, err := b.Seal(msg)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce aleatorio")

	pt, err := b.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
}

func TestNew_KeyFormats(t *testing.T) {
	k := testKey()
	for _, key := range []string{
		base64.StdEncoding.EncodeToString(k),
		base64.RawStdEncoding.EncodeToString(k),
		hex.EncodeToString(k),
	} {
		_, err := New(key)
		assert.NoError(t, err, key)
	}

	_, err := New("")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = New("corta")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestOpen_Tampered(t *testing.T) {
	b, err := New(hex.EncodeToString(testKey()))
	require.NoError(t, err)
	sealed, err := b.Seal("secreto")
	require.NoError(t, err)

	nonce, ct, _ := strings.Cut(sealed, "|")
	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[0] ^= 0xff
	_, err = b.Open(nonce + "|" + base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)

	_, err = b.Open("sin-separador")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	other := testKey()
	other[0] = 0
	b2, err := New(hex.EncodeToString(other))
	require.NoError(t, err)
	_, err = b2.Open(sealed)
	assert.Error(t, err)
}

func TestReveal(t *testing.T) {
	b, err := New(hex.EncodeToString(testKey()))
	require.NoError(t, err)

	v, err := b.Reveal("plano")
	require.NoError(t, err)
	assert.Equal(t, "plano", v)

	sealed, err := b.Seal("oculto")
	require.NoError(t, err)
	v, err = b.Reveal(Prefix + sealed)
	require.NoError(t, err)
	assert.Equal(t, "oculto", v)
}
