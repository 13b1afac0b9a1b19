package handoff

import (
	"encoding/json"
	"time"

	"github.com/mr-tron/base58"

	dErrors "veriflow/pkg/domain-errors"
)

// QRPayload is what the primary device renders into a QR code. Base58 keeps
// the encoded string free of characters that scan poorly or break URLs.
type QRPayload struct {
	SessionID   string    `json:"sid"`
	ScopedToken string    `json:"tok"`
	ExpiresAt   time.Time `json:"exp"`
}

// EncodeQR serializes a payload for QR rendering.
func EncodeQR(p QRPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode qr payload")
	}
	return base58.Encode(raw), nil
}

// DecodeQR parses a scanned payload on the secondary device.
func DecodeQR(encoded string) (QRPayload, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return QRPayload{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "decode qr payload")
	}
	var p QRPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return QRPayload{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "parse qr payload")
	}
	if p.ScopedToken == "" {
		return QRPayload{}, dErrors.New(dErrors.CodeBadRequest, "qr payload missing token")
	}
	return p, nil
}
