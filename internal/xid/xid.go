package xid

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// RequestID returns a random identifier for one HTTP request.
func RequestID() string {
	return uuid.NewString()
}

// Barcode returns a random in-store EAN-13 code. The "20" prefix is the
// range GS1 reserves for restricted in-store numbering, so generated codes
// never clash with manufacturer barcodes.
func Barcode() string {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8]) % 10_000_000_000
	body := fmt.Sprintf("20%010d", n)
	return body + string(rune('0'+ean13CheckDigit(body)))
}

func ean13CheckDigit(body string) int {
	sum := 0
	for i, r := range body {
		digit := int(r - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	return (10 - sum%10) % 10
}
