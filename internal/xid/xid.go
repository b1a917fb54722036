package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "sale-3f2c9a...".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	}
	return fmt.Sprintf("%s-%s", prefix, strings.ReplaceAll(id.String(), "-", ""))
}

// Suffix returns n uppercase alphanumeric characters for human readable
// codes. Ambiguous glyphs are left out.
func Suffix(n int) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	id := uuid.New()
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[int(id[i%len(id)])%len(alphabet)]
	}
	return string(out)
}
