package disk

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// diskName maps an arbitrary user key to a fixed-width hex name safe for any
// store backend. Collisions overwrite; at 64 bits they are not a practical
// concern for cache workloads.
func diskName(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
