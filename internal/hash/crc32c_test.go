package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32CMatchesStreaming(t *testing.T) {
	data := []byte("embedding rows")

	h := NewCRC32C()
	_, _ = h.Write(data[:4])
	_, _ = h.Write(data[4:])

	assert.Equal(t, CRC32C(data), h.Sum32())
}

func TestRowBindsKey(t *testing.T) {
	payload := []byte{1, 2, 3, 4}

	assert.Equal(t, Row(7, payload), Row(7, payload))
	assert.NotEqual(t, Row(7, payload), Row(8, payload))
	assert.NotEqual(t, Row(7, payload), Row(7, []byte{1, 2, 3, 5}))
}
