package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashKey builds a cache key from parts, hashing the joined value so
// arbitrary user text never appears in key names.
func HashKey(parts ...string) string {
	return HashString(strings.Join(parts, "\x00"))
}
