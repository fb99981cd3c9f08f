package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// tempPasswordAlphabet omits characters that are easy to misread when a
// password is handed over on paper (0/o, 1/l/i).
const tempPasswordAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

const (
	tempPasswordGroups    = 3
	tempPasswordGroupSize = 4
)

// GenerateTempPassword returns a one-time password such as "k7qm-2xve-9tnc".
// It satisfies the minimum password length, so it can also be used as a
// forced-change starting point.
func GenerateTempPassword() (string, error) {
	max := big.NewInt(int64(len(tempPasswordAlphabet)))

	var b strings.Builder
	for g := 0; g < tempPasswordGroups; g++ {
		if g > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < tempPasswordGroupSize; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("failed to generate temp password: %w", err)
			}
			b.WriteByte(tempPasswordAlphabet[n.Int64()])
		}
	}
	return b.String(), nil
}
