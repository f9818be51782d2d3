package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

// GenerateCacheKey creates a cache key from prefix and params. Params are
// hashed so arbitrarily long summarizer inputs produce bounded keys.
func GenerateCacheKey(prefix string, params ...interface{}) string {
	if len(params) == 0 {
		return prefix
	}

	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return prefix + ":" + hex.EncodeToString(hash[:])
}
