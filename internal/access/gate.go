// Package access resolves the signed-in identity against the
// authorized-user list and gates mutation entry points by role. This is
// UI-level gating, not a security boundary: nothing enforces it server
// side.
package access

import (
	"sync"

	"github.com/caixaflow/ledger/internal/domain"
)

// State is the authorization resolution state of the active session.
type State int

const (
	// StateUnknown means no sync has completed yet for this session.
	StateUnknown State = iota
	// StateAuthorized means the identity was found in the list.
	StateAuthorized
	// StateDenied means a completed sync did not find the identity. A
	// later sync can still flip this to authorized.
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateAuthorized:
		return "authorized"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// ResolveRole looks up an email in the authorized-user list. Matching is
// case-insensitive and whitespace-trimmed on both sides.
func ResolveRole(users []domain.AuthorizedUser, email string) (domain.Role, bool) {
	key := domain.NormalizeEmail(email)
	if key == "" {
		return "", false
	}
	for _, user := range users {
		if domain.NormalizeEmail(user.Email) == key {
			return user.Role, true
		}
	}
	return "", false
}

// Gate holds the session's resolution state and resolved role.
type Gate struct {
	mu    sync.RWMutex
	state State
	role  domain.Role
}

// NewGate creates a gate in the unknown state.
func NewGate() *Gate {
	return &Gate{}
}

// Resolve transitions the gate from the result of a completed sync. It
// must only be called with a freshly fetched authorized-user list; sync
// failures never transition the gate.
func (g *Gate) Resolve(users []domain.AuthorizedUser, email string) {
	role, found := ResolveRole(users, email)

	g.mu.Lock()
	defer g.mu.Unlock()
	if found {
		g.state = StateAuthorized
		g.role = role
	} else {
		g.state = StateDenied
		g.role = ""
	}
}

// GrantLocal puts the gate in fully local mode: Admin, authorized. Used
// when no remote endpoint is configured.
func (g *Gate) GrantLocal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateAuthorized
	g.role = domain.RoleAdmin
}

// State returns the current resolution state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Role returns the resolved role, empty unless authorized.
func (g *Gate) Role() domain.Role {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.role
}

// Authorized reports whether the session may use the application.
func (g *Gate) Authorized() bool {
	return g.State() == StateAuthorized
}

// CanMutate reports whether the role may use any mutation entry point.
// Guests are read-only.
func CanMutate(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleFinance
}

// CanManageDirectory reports whether the role may manage establishments,
// authorized users and settings. Admin only.
func CanManageDirectory(role domain.Role) bool {
	return role == domain.RoleAdmin
}

// CanManageShortcuts reports whether the role may manage the
// quick-description shortcuts.
func CanManageShortcuts(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleFinance
}
