package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Alphabet for human-typeable check-in codes. No 0/O or 1/I, operators read
// these out loud at the door.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateTicketID creates a random UUID v4 string for a new ticket.
func GenerateTicketID() string {
	return uuid.New().String()
}

// GenerateCheckinCode produces a short fallback code like "TKT-7FQ2-M9XR"
// for manual entry when the QR path is unavailable.
func GenerateCheckinCode() string {
	buf := make([]byte, 8)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// crypto/rand failing is unrecoverable for code issuance; fall
			// back to a timestamp-derived code rather than panic.
			return fmt.Sprintf("TKT-%d", time.Now().UnixNano())
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("TKT-%s-%s", buf[:4], buf[4:])
}
