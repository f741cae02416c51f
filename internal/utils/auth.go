package utils

import "context"

// SetAdminContext sets the authenticated admin into context (called by middleware)
func SetAdminContext(ctx context.Context, email, role string) context.Context {
	ctx = context.WithValue(ctx, AdminEmailKey, email)
	ctx = context.WithValue(ctx, AdminRoleKey, role)
	return ctx
}

func GetAdminEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(AdminEmailKey).(string)
	return email
}

func GetRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(AdminRoleKey).(string)
	return role
}
