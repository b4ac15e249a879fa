package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckSignatureAcceptsMatchingType(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	err := CheckSignature("image/png", png, nil)
	assert.NoError(t, err)
}

func TestCheckSignatureRejectsMismatch(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	err := CheckSignature("application/pdf", png, nil)
	assert.Error(t, err)
	_, ok := err.(*ErrSignatureMismatch)
	assert.True(t, ok)
}

func TestCheckSignatureEnforcesWhitelist(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	err := CheckSignature("image/png", png, []string{"image/jpeg", "image/gif"})
	assert.Error(t, err)
	_, ok := err.(*ErrMIMETypeNotAllowed)
	assert.True(t, ok)
}

func TestCheckSignatureWhitelistAllowsMatchingType(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	err := CheckSignature("image/png", png, []string{"image/png"})
	assert.NoError(t, err)
}
