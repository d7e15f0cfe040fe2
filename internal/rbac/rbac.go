package rbac

type Role string
type Action string

const (
	RoleViewer   Role = "viewer"
	RoleProducer Role = "producer"
	RoleManager  Role = "manager"
	RoleBilling  Role = "billing"
	RoleAdmin    Role = "admin"
)

const (
	ActionRead       Action = "read"
	ActionWrite      Action = "write"
	ActionTransition Action = "transition"
	// ActionInvoice gates moves into the invoiced/paid pipeline states.
	ActionInvoice Action = "invoice"
	ActionManage  Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleBilling:
		return action == ActionRead || action == ActionWrite || action == ActionTransition || action == ActionInvoice
	case RoleManager:
		return action == ActionRead || action == ActionWrite || action == ActionTransition || action == ActionManage
	case RoleProducer:
		return action == ActionRead || action == ActionWrite || action == ActionTransition
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleProducer, RoleManager, RoleBilling, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
