// Package qr encodes the provisioning portal address as a QR module matrix.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder produces borderless QR matrices at low error correction, the
// smallest symbol that fits a short URL on the panel.
type Encoder struct{}

// Encode returns the module matrix for content; true is a dark module.
func (Encoder) Encode(content string) ([][]bool, error) {
	code, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	code.DisableBorder = true
	return code.Bitmap(), nil
}
