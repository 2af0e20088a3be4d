package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandByteArray_Basic(t *testing.T) {
	n := 32
	buf1 := GenerateRandByteArray(n)
	buf2 := GenerateRandByteArray(n)

	assert.Len(t, buf1, n)
	assert.Len(t, buf2, n)
	assert.NotEqual(t, buf1, buf2)
}

func TestGenerateRandByteArray_ZeroLength(t *testing.T) {
	buf := GenerateRandByteArray(0)
	assert.Len(t, buf, 0)
}
