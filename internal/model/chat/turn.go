package chat

import "time"

// Role tags the author of a turn. The set is closed; use Valid to reject
// anything else coming from the wire.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleSummary   Role = "summary"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleSummary:
		return true
	default:
		return false
	}
}

// Turn is one entry of an in-memory conversation window.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsSummary reports whether the turn is a synthesized recap of older turns.
func (t Turn) IsSummary() bool {
	return t.Role == RoleSummary
}
