package utils

import (
    "crypto/rand"
    "crypto/sha256"
    "encoding/hex"
    "fmt"
    "math/big"
)

// PinDigits is the length of an emailed password reset PIN.
const PinDigits = 6

// NewResetPin returns a uniformly random zero-padded decimal PIN.
func NewResetPin() (string, error) {
    max := big.NewInt(1_000_000) // 10^PinDigits
    n, err := rand.Int(rand.Reader, max)
    if err != nil {
        return "", err
    }
    return fmt.Sprintf("%0*d", PinDigits, n.Int64()), nil
}

// HashPin returns the SHA-256 hex digest of a PIN.  Only digests are stored.
func HashPin(pin string) string {
    sum := sha256.Sum256([]byte(pin))
    return hex.EncodeToString(sum[:])
}
