package domain

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccessOrder reports whether the actor owns the order or administers the
// store.
func CanAccessOrder(actor Actor, order *Order) bool {
	if order == nil {
		return false
	}
	return actor.ID == order.UserID || actor.IsAdmin()
}
