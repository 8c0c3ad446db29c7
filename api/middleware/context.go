package middleware

import (
	"context"

	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
)

type contextKey string

const (
	ctxStaffID   contextKey = "staff_id"
	ctxStaffRole contextKey = "staff_role"
)

func StaffIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxStaffID).(string); ok {
		return v
	}
	return ""
}

func StaffRoleFromContext(ctx context.Context) enums.StaffRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxStaffRole).(enums.StaffRole); ok {
		return v
	}
	return ""
}

// WithStaff injects the authenticated staff member into the context.
func WithStaff(ctx context.Context, staffID string, role enums.StaffRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxStaffID, staffID)
	return context.WithValue(ctx, ctxStaffRole, role)
}
