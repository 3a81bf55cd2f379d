// Package domain defines the core types and interfaces for the tutor.
// All other packages depend on domain; domain depends on nothing.
package domain

// Role attributes a turn to one side of the conversation.
type Role int

const (
	RoleUser Role = iota
	RoleModel
)

// String returns a human-readable role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModel:
		return "model"
	default:
		return "unknown"
	}
}

// Turn is one message in the conversation.
//
// USER content is plain text. MODEL content is HTML produced by the model
// and is untrusted unless Trusted is set, which only happens for markup the
// application writes itself (the stream failure notice).
type Turn struct {
	ID      string
	Role    Role
	Content string
	Trusted bool
}
