package apiserver

import (
	"crypto/rand"
	"math/big"
)

const tokenCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const tokenLength = 32

// GenerateToken produces a 32-character alphanumeric API token using a
// cryptographically secure random source.
func GenerateToken() (string, error) {
	out := make([]byte, tokenLength)
	max := big.NewInt(int64(len(tokenCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tokenCharset[n.Int64()]
	}
	return string(out), nil
}
