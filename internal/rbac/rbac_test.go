package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionView, true},
		{RoleAdmin, ActionParticipate, true},
		{RoleAdmin, ActionContribute, true},
		{RoleAdmin, ActionManage, true},
		{RoleEditor, ActionView, true},
		{RoleEditor, ActionParticipate, true},
		{RoleEditor, ActionContribute, true},
		{RoleEditor, ActionManage, false},
		{RoleViewer, ActionView, true},
		{RoleViewer, ActionParticipate, true},
		{RoleViewer, ActionContribute, false},
		{RoleViewer, ActionManage, false},
		{RoleNone, ActionView, false},
		{RoleNone, ActionParticipate, false},
		{RoleNone, ActionContribute, false},
		{RoleNone, ActionManage, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{"editor", RoleEditor},
		{"viewer", RoleViewer},
		{"", RoleNone},
		{"owner", RoleNone},
		{"ADMIN", RoleNone},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestAssignable(t *testing.T) {
	for _, role := range []string{"viewer", "editor", "admin"} {
		if !Assignable(role) {
			t.Errorf("Assignable(%q) = false, want true", role)
		}
	}
	for _, role := range []string{"", "none", "owner", "Viewer"} {
		if Assignable(role) {
			t.Errorf("Assignable(%q) = true, want false", role)
		}
	}
}
