package chat

import (
	"time"

	"github.com/jobmate/backend/internal/model/profile"
)

// Session captures one user's conversation for the lifetime of a UI session.
type Session struct {
	ID        string           `json:"id"`
	Profile   *profile.Profile `json:"profile,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
