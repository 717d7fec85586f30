package cache

import "fmt"

// ResultKey is the cache key for a completed analysis result.
func ResultKey(identityKey string) string {
	return fmt.Sprintf("result:%s", identityKey)
}
