package access

import (
	"testing"

	"github.com/caixaflow/ledger/internal/domain"
)

func TestResolveRole(t *testing.T) {
	users := []domain.AuthorizedUser{
		{Email: "a@x.com", Role: domain.RoleAdmin},
		{Email: "Fin@X.com", Role: domain.RoleFinance},
	}

	tests := []struct {
		name      string
		email     string
		wantRole  domain.Role
		wantFound bool
	}{
		{"exact match", "a@x.com", domain.RoleAdmin, true},
		{"case and whitespace insensitive", "A@X.com ", domain.RoleAdmin, true},
		{"stored email also normalized", "fin@x.com", domain.RoleFinance, true},
		{"not in list", "ghost@x.com", "", false},
		{"empty email", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, found := ResolveRole(users, tt.email)
			if role != tt.wantRole || found != tt.wantFound {
				t.Errorf("ResolveRole(%q) = (%q, %v), want (%q, %v)", tt.email, role, found, tt.wantRole, tt.wantFound)
			}
		})
	}
}

func TestGateTransitions(t *testing.T) {
	users := []domain.AuthorizedUser{{Email: "a@x.com", Role: domain.RoleAdmin}}

	g := NewGate()
	if g.State() != StateUnknown {
		t.Fatalf("initial state = %v, want unknown", g.State())
	}

	// unknown → denied
	g.Resolve(users, "ghost@x.com")
	if g.State() != StateDenied || g.Role() != "" {
		t.Errorf("after failed resolution: state=%v role=%q", g.State(), g.Role())
	}

	// denied → authorized: an admin added the identity meanwhile.
	g.Resolve(append(users, domain.AuthorizedUser{Email: "ghost@x.com", Role: domain.RoleGuest}), "ghost@x.com")
	if g.State() != StateAuthorized || g.Role() != domain.RoleGuest {
		t.Errorf("after recovery: state=%v role=%q", g.State(), g.Role())
	}
}

func TestGateGrantLocal(t *testing.T) {
	g := NewGate()
	g.GrantLocal()

	if !g.Authorized() || g.Role() != domain.RoleAdmin {
		t.Errorf("local mode should grant Admin, got state=%v role=%q", g.State(), g.Role())
	}
}

func TestPermissionPredicates(t *testing.T) {
	tests := []struct {
		role          domain.Role
		mutate        bool
		directory     bool
		shortcuts     bool
	}{
		{domain.RoleAdmin, true, true, true},
		{domain.RoleFinance, true, false, true},
		{domain.RoleGuest, false, false, false},
		{"", false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := CanMutate(tt.role); got != tt.mutate {
				t.Errorf("CanMutate(%q) = %v, want %v", tt.role, got, tt.mutate)
			}
			if got := CanManageDirectory(tt.role); got != tt.directory {
				t.Errorf("CanManageDirectory(%q) = %v, want %v", tt.role, got, tt.directory)
			}
			if got := CanManageShortcuts(tt.role); got != tt.shortcuts {
				t.Errorf("CanManageShortcuts(%q) = %v, want %v", tt.role, got, tt.shortcuts)
			}
		})
	}
}
