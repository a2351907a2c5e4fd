package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("a1b2/SN-1_20260301_140509.pdf"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", contentType("a1b2/SN-1.docx"))
	assert.Equal(t, "application/octet-stream", contentType("a1b2/notes"))
}
