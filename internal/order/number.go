package order

import (
	"fmt"
	"math/rand"
	"time"
)

const numberSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber builds a human-readable order number of the form
// ORD-<yyyymmddhhmmss>-<6 random uppercase alphanumerics>. Collisions are
// unlikely but possible; the repository treats a unique violation on the
// column as a signal to regenerate and retry.
func GenerateOrderNumber() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = numberSuffixAlphabet[rand.Intn(len(numberSuffixAlphabet))]
	}
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102150405"), suffix)
}
