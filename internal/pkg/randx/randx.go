/*
Package randx provides functions for generating cryptographically secure random identifiers.

It is primarily used to generate the Base62 temporary ids a client assigns to a message
before the server has confirmed it.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// TempIDPrefix marks ids that were generated locally and never persisted.
	TempIDPrefix = "tmp_"

	// TempIDRawLength is the fixed length of the Base62 part of a TempID.
	TempIDRawLength = 12
)

// Base62 returns n random characters from Base62Chars using crypto/rand.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// TempID generates a local placeholder id such as "tmp_4fZk09QbXa1c".
func TempID() (string, error) {
	raw, err := Base62(TempIDRawLength)
	if err != nil {
		return "", err
	}
	return TempIDPrefix + raw, nil
}

// IsTempID reports whether id was produced by TempID.
func IsTempID(id string) bool {
	rawID, ok := strings.CutPrefix(id, TempIDPrefix)
	if !ok || len(rawID) != TempIDRawLength {
		return false
	}

	for _, char := range rawID {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
