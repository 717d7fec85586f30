package pipeline

import (
	"testing"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/stretchr/testify/assert"
)

func TestIdentityKeyDeterministic(t *testing.T) {
	image := []byte("fake image bytes")
	params := map[string]string{"mode": "receipt", "language": "en"}

	first := IdentityKey(image, params)
	second := IdentityKey(image, params)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex-encoded SHA-256
}

func TestIdentityKeyParamOrderIndependent(t *testing.T) {
	image := []byte("fake image bytes")

	// Maps iterate in random order; hashing many times over the same map
	// exercises different orders and must always agree.
	params := map[string]string{
		"mode":     "receipt",
		"language": "en",
		"detail":   "high",
	}

	want := IdentityKey(image, params)
	for i := 0; i < 50; i++ {
		assert.Equal(t, want, IdentityKey(image, params))
	}
}

func TestIdentityKeyDistinguishesInputs(t *testing.T) {
	imageA := []byte("image a")
	imageB := []byte("image b")
	params := map[string]string{"mode": "receipt"}

	assert.NotEqual(t, IdentityKey(imageA, params), IdentityKey(imageB, params))

	other := map[string]string{"mode": "caption"}
	assert.NotEqual(t, IdentityKey(imageA, params), IdentityKey(imageA, other))
}

func TestIdentityKeyEmptyParamEqualsAbsent(t *testing.T) {
	image := []byte("image")

	withEmpty := IdentityKey(image, map[string]string{"mode": "receipt", "language": ""})
	without := IdentityKey(image, map[string]string{"mode": "receipt"})

	assert.Equal(t, without, withEmpty)
}

func TestIdentityKeyNoValueAliasing(t *testing.T) {
	image := []byte("image")

	// Key/value boundaries must not collide: {"ab": "c"} != {"a": "bc"}
	a := IdentityKey(image, map[string]string{"ab": "c"})
	b := IdentityKey(image, map[string]string{"a": "bc"})

	assert.NotEqual(t, a, b)
}

func TestIdentityForParams(t *testing.T) {
	image := []byte("image")

	key := IdentityForParams(image, analysis.Params{Mode: analysis.ModeReceipt, Language: "en"})
	same := IdentityKey(image, map[string]string{"mode": "receipt", "language": "en"})

	assert.Equal(t, same, key)
}
