package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/anand-gl/jsoncanonicalizer"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/catcommon"
)

const hashLen = 16

// Key returns "<prefix>:<tenant>:<hash>" where hash is the first 16 hex
// characters of the SHA-256 of the canonical JSON form of params. Equal
// parameter sets give equal keys regardless of field order.
func Key(prefix string, tenantID catcommon.TenantId, params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return prefix + ":" + tenantID.CacheLabel() + ":" + hex.EncodeToString(sum[:])[:hashLen], nil
}
