package httpx

import (
	"fmt"
	"net/http"

	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// RequireActor returns the caller identity attached by the identity middleware.
func RequireActor(r *http.Request) (shared.Actor, error) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		return shared.Actor{}, fmt.Errorf("%s %s: %w", r.Method, r.URL.Path, shared.ErrIdentityMissing)
	}
	return actor, nil
}

// Accepted is the body returned when work was queued instead of performed.
type Accepted struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
}
