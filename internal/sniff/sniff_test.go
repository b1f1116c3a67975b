package sniff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, "png", Extension(png))
	assert.Equal(t, "pdf", Extension([]byte("%PDF-1.4\n%")))
	assert.Equal(t, "txt", Extension([]byte("hello world\n")))
	assert.Equal(t, "", Extension(nil))
	assert.Equal(t, "", Extension([]byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00}))
	assert.Equal(t, Placeholder, ExtensionOr([]byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00}))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(""))
	assert.True(t, IsPlaceholder("bin"))
	assert.True(t, IsPlaceholder(".BIN"))
	assert.False(t, IsPlaceholder("png"))
}
