package entity

import (
	"time"

	"github.com/google/uuid"
)

// PreviewCacheEntry shortcuts a preview run: the key is a hash over the
// source image content and the ordered tool list, so byte-identical images
// with identical edits resolve without touching the pipeline.
type PreviewCacheEntry struct {
	OwnerID  uuid.UUID `json:"owner_id"`
	CacheKey string    `json:"cache_key"`

	BlobKeys    []string `json:"blob_keys"`
	TextResults []string `json:"text_results,omitempty"`

	HitCount  int64         `json:"hit_count"`
	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"created_at"`
	LastHitAt time.Time     `json:"last_hit_at"`
}
