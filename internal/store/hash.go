package store

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashContent returns the change-detection hash stored in files.hash.
// Only equality matters, so a fast non-cryptographic hash is used.
func HashContent(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}
