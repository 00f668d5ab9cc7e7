package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RunProgressKey(runID uuid.UUID) string {
	return fmt.Sprintf("run:%s", runID)
}

func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
