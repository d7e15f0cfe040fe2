package rbac

import "testing"

func TestInvoiceActionGated(t *testing.T) {
	// Only billing and admin may move work into invoiced/paid.
	allowed := map[Role]bool{
		RoleViewer:   false,
		RoleProducer: false,
		RoleManager:  false,
		RoleBilling:  true,
		RoleAdmin:    true,
	}
	for role, want := range allowed {
		if got := Can(role, ActionInvoice); got != want {
			t.Errorf("Can(%s, invoice) = %v, want %v", role, got, want)
		}
	}
}

func TestRoleMatrix(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleViewer, ActionRead, true},
		{RoleViewer, ActionWrite, false},
		{RoleProducer, ActionWrite, true},
		{RoleProducer, ActionTransition, true},
		{RoleProducer, ActionManage, false},
		{RoleManager, ActionManage, true},
		{RoleManager, ActionInvoice, false},
		{RoleBilling, ActionTransition, true},
		{RoleBilling, ActionManage, false},
		{RoleAdmin, ActionManage, true},
		{Role("unknown"), ActionRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("billing") != RoleBilling {
		t.Error("known role should pass through")
	}
	if Normalize("") != RoleViewer {
		t.Error("unknown role should default to viewer")
	}
	if Normalize("root") != RoleViewer {
		t.Error("unknown role should default to viewer")
	}
}
