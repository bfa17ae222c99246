package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
)

// CacheKey addresses a preview by source-image content and the exact ordered
// tool chain. encoding/json sorts map keys, so the serialization is stable
// for identical params regardless of insertion order.
func CacheKey(contentHash string, tools []entity.Tool) string {
	doc := struct {
		ImgContentHash string        `json:"imgContentHash"`
		Tools          []entity.Tool `json:"tools"`
	}{
		ImgContentHash: contentHash,
		Tools:          tools,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		// tools carry only JSON-decoded values, marshal cannot fail
		panic(err)
	}

	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:])
}
