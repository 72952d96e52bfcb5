package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag derives a weak validator from a document id and its last
// modification time.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s-%d", id.Hex(), updatedAt.UnixNano())))
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}

// GenerateListETag also folds in the item count so deletions change the tag.
func GenerateListETag(latestID primitive.ObjectID, latestUpdate time.Time, count int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s-%d-%d", latestID.Hex(), latestUpdate.UnixNano(), count)))
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}
