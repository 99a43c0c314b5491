package cache

import (
	"fmt"
	"strings"
	"unicode"
)

const maxKeyLength = 250

// ValidateKey rejects empty or oversized keys, control characters and
// surrounding whitespace.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidKey, maxKeyLength)
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains control character", ErrInvalidKey)
		}
	}
	if strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: key has leading or trailing whitespace", ErrInvalidKey)
	}
	return nil
}

// KeyPattern builds keys of the form prefix:part:part.
type KeyPattern struct {
	prefix    string
	separator string
}

// NewKeyPattern creates a pattern. An empty separator defaults to ":".
func NewKeyPattern(prefix, separator string) *KeyPattern {
	if separator == "" {
		separator = ":"
	}
	return &KeyPattern{prefix: prefix, separator: separator}
}

// Build joins the prefix and parts.
// Example: NewKeyPattern("account", "").Build("balance", "ACC001") -> "account:balance:ACC001"
func (kp *KeyPattern) Build(parts ...string) string {
	if len(parts) == 0 {
		return kp.prefix
	}
	return kp.prefix + kp.separator + strings.Join(parts, kp.separator)
}

var accountKeys = NewKeyPattern("account", ":")

// AccountKey is the cache key for an account record.
func AccountKey(accountNumber string) string {
	return accountKeys.Build(accountNumber)
}

// BalanceKey is the cache key for an account balance.
func BalanceKey(accountNumber string) string {
	return accountKeys.Build("balance", accountNumber)
}
