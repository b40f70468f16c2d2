package authz

import (
	"ms-checkin/internal/models"
)

// Role names as they arrive in the operator's claims.
const (
	RolePlatformAdmin = "admin"
	RolePlatformStaff = "staff"
	RoleOrganizer     = "organizer"
	RoleEventStaff    = "staff"
	RoleScanner       = "scanner"
)

// Gate decides what an operator may do at the door. CanScan is the elevated
// capability (camera scanning); CanView is the weaker one that also covers
// token minting on behalf of an attendee.
type Gate interface {
	CanScan(operator models.Operator, eventID string) bool
	CanView(operator models.Operator, eventID string) bool
}

// RoleGate is the stateless claims-based implementation.
type RoleGate struct{}

func NewRoleGate() *RoleGate {
	return &RoleGate{}
}

func (g *RoleGate) CanScan(operator models.Operator, eventID string) bool {
	if operator.HasRole(RolePlatformAdmin, RolePlatformStaff) {
		return true
	}
	return operator.HasEventRole(eventID, RoleOrganizer, RoleEventStaff, RoleScanner)
}

func (g *RoleGate) CanView(operator models.Operator, eventID string) bool {
	if g.CanScan(operator, eventID) {
		return true
	}
	return operator.HasEventRole(eventID, RoleOrganizer)
}
