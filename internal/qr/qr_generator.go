package qr

import (
	"encoding/json"

	"github.com/skip2/go-qrcode"
)

// Envelope is the payload encoded into displayed QR codes. Scanners also
// accept a bare token string; the envelope form exists for clients that
// attach metadata alongside the token.
type Envelope struct {
	Token string `json:"token"`
}

type Generator struct {
	size int
}

func NewGenerator() *Generator {
	return &Generator{size: 256}
}

// EncodeToken renders the token envelope as a PNG for display on the
// holder's device. The token is already signed; the QR adds no secrecy.
func (g *Generator) EncodeToken(token string) ([]byte, error) {
	payload, err := json.Marshal(Envelope{Token: token})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(payload), qrcode.Medium, g.size)
}
