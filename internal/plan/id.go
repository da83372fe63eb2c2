package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Now is the clock used for timestamps. Tests may replace it.
var Now = func() time.Time {
	return time.Now().UTC()
}

// GenerateID returns "<prefix>-<unix millis>-<random suffix>".
// Ids are unique in practice but not cryptographically guaranteed; callers
// must treat them as opaque.
func GenerateID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, Now().UnixMilli(), suffix)
}
