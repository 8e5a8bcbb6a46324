// Package rbac is the single source of the role-to-permission mapping for
// project memberships. Every read and write path resolves authorization
// through Can rather than re-deriving role checks per operation.
package rbac

type Role string
type Action string

const (
	RoleNone   Role = "none"
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	// ActionView covers reading project content (tasks, messages, polls).
	ActionView Action = "view"
	// ActionParticipate covers member-level writes: chat, voting, read receipts.
	ActionParticipate Action = "participate"
	// ActionContribute covers creating and editing tasks and polls.
	ActionContribute Action = "contribute"
	// ActionManage covers membership, project status, and closing any poll.
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionView || action == ActionParticipate || action == ActionContribute
	case RoleViewer:
		return action == ActionView || action == ActionParticipate
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleNone
	}
}

// Assignable reports whether a role may be granted to a team member.
func Assignable(role string) bool {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}
