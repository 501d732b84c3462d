package report

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

var ErrBadHash = errors.New("report: not a sha256 hex digest")

// HashQR renders a SHA-256 hex digest as a PNG QR code. The encoded text is
// "sha256:<hex>" so a scanned sheet names its digest.
func HashQR(hash string, size int) ([]byte, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) != sha256.Size*2 {
		return nil, fmt.Errorf("%w: %q", ErrBadHash, hash)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadHash, hash)
	}
	if size <= 0 {
		size = 128
	}
	qr, err := qrcode.New("sha256:"+hash, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	qr.DisableBorder = true
	return qr.PNG(size)
}
