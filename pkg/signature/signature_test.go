package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"track_updated","data":{"number":"1Z999AA10123456784"}}`)
	secret := "test-webhook-secret"

	t.Run("valid plain hex signature", func(t *testing.T) {
		sig := ComputeHex(body, secret)
		assert.True(t, Verify(body, sig, secret))
	})

	t.Run("valid sha256 prefixed signature", func(t *testing.T) {
		sig := "sha256=" + ComputeHex(body, secret)
		assert.True(t, Verify(body, sig, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := ComputeHex(body, "other-secret")
		assert.False(t, Verify(body, sig, secret))
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := ComputeHex(body, secret)
		tampered := append([]byte{}, body...)
		tampered[0] = '['
		assert.False(t, Verify(tampered, sig, secret))
	})

	t.Run("empty header", func(t *testing.T) {
		assert.False(t, Verify(body, "", secret))
	})

	t.Run("empty secret", func(t *testing.T) {
		sig := ComputeHex(body, secret)
		assert.False(t, Verify(body, sig, ""))
	})

	t.Run("malformed header", func(t *testing.T) {
		assert.False(t, Verify(body, "not-hex-at-all", secret))
		assert.False(t, Verify(body, "sha256=zzzz", secret))
	})

	t.Run("truncated signature", func(t *testing.T) {
		sig := ComputeHex(body, secret)
		assert.False(t, Verify(body, sig[:32], secret))
	})
}

func TestComputeHex(t *testing.T) {
	// Signature depends on the exact bytes, not the JSON structure.
	a := ComputeHex([]byte(`{"a":1,"b":2}`), "s")
	b := ComputeHex([]byte(`{"b":2,"a":1}`), "s")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
