package models

// Operator is the identity a staff device acts as. Platform roles come from
// the realm (admin, staff); event roles are keyed by event ID (organizer,
// staff, scanner).
type Operator struct {
	ID         string              `json:"id"`
	Roles      []string            `json:"roles"`
	EventRoles map[string][]string `json:"event_roles"`
}

// HasRole reports whether the operator holds any of the given platform roles.
func (o Operator) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range o.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasEventRole reports whether the operator holds any of the given roles for
// the event.
func (o Operator) HasEventRole(eventID string, roles ...string) bool {
	held := o.EventRoles[eventID]
	for _, want := range roles {
		for _, have := range held {
			if have == want {
				return true
			}
		}
	}
	return false
}
