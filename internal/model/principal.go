package model

import "strings"

const (
	RoleAdmin    = "ADMIN"
	RoleOperator = "OPERATOR"
	RoleViewer   = "VIEWER"
)

type Principal struct {
	UserID string
	Role   string
	Token  string
}

func (p Principal) CanEdit() bool {
	switch strings.ToUpper(p.Role) {
	case RoleAdmin, RoleOperator:
		return true
	default:
		return false
	}
}
