package cloud

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// CacheKey hashes provider, secret name and the fetch qualifiers of cfg.
// Absent and empty qualifiers are equivalent, so a nil cfg and an empty
// cfg produce the same key.
func CacheKey(provider ProviderName, secretName string, cfg *SecretConfig) string {
	var versionID, versionStage string
	if cfg != nil {
		versionID = cfg.VersionID
		versionStage = cfg.VersionStage
	}

	unique := strings.Join([]string{string(provider), secretName, versionID, versionStage}, ":")
	sum := md5.Sum([]byte(unique))
	return hex.EncodeToString(sum[:])
}
