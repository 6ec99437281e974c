package checkout

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// newOrderNumber builds a human-readable order reference like
// ORD-20260830-4F7A2C. Uniqueness is enforced by the orders.order_number
// index; a collision surfaces as a retryable conflict.
func newOrderNumber(now time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// fall back to the clock; the unique index still protects us
		return fmt.Sprintf("ORD-%s-%06X", now.UTC().Format("20060102"), now.UnixNano()%0xFFFFFF)
	}
	suffix := strings.ToUpper(hex.EncodeToString(buf))
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}
