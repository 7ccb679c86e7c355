package wallet

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "tradegate/pkg/domain-errors"
)

const addressHexLen = 40

// ParseAddress validates a 20-byte hex account and returns its canonical
// lowercase form, which is also the profile document key.
func ParseAddress(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) != addressHexLen+2 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid wallet address")
	}
	body := strings.ToLower(s[2:])
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid wallet address")
	}
	return "0x" + body, nil
}

// ChecksumAddress renders a lowercase address in EIP-55 mixed case for
// display. Invalid input is returned unchanged.
func ChecksumAddress(addr string) string {
	lower, err := ParseAddress(addr)
	if err != nil {
		return addr
	}
	body := lower[2:]

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(body))
	digest := h.Sum(nil)

	out := []byte(body)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return "0x" + string(out)
}
