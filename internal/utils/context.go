package utils

type contextKey string

const (
	AdminEmailKey contextKey = "admin_email"
	AdminRoleKey  contextKey = "admin_role"
)

const RoleAdmin = "admin"
