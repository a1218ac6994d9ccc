package orchestrators

import (
	"context"
	"log/slog"

	"courtside/internal/adapters/academy"
	"courtside/internal/domain/class"
)

// ClassAPI defines the academy client surface for class resolution.
type ClassAPI interface {
	ResolveClassByType(ctx context.Context, date, classTypeID string) (academy.ClassInfo, error)
	ListClassTypes(ctx context.Context) ([]academy.ClassType, error)
}

// ResolveClassInput carries input for the class resolution orchestrator.
type ResolveClassInput struct {
	ClassTypeID string
	PackageID   string
	Date        string
}

// ResolveClassDeps holds dependencies for ResolveClass.
type ResolveClassDeps struct {
	Academy ClassAPI
}

// ResolveClassResult carries the resolved class context.
type ResolveClassResult struct {
	Class class.Context
}

// ExecuteResolveClass looks up the concrete class session for a class type on
// a given date. The backend creates the session on first lookup, so resolving
// is idempotent.
// PRE: ClassTypeID, PackageID and Date are non-empty
// POST: The returned context identifies exactly one class session
func ExecuteResolveClass(ctx context.Context, input ResolveClassInput, deps ResolveClassDeps) (ResolveClassResult, error) {
	if input.ClassTypeID == "" || input.Date == "" {
		return ResolveClassResult{}, invalidInput("class type and date are required")
	}

	info, err := deps.Academy.ResolveClassByType(ctx, input.Date, input.ClassTypeID)
	if err != nil {
		return ResolveClassResult{}, err
	}

	resolved := class.Context{
		ClassID:     info.ID,
		ClassTypeID: input.ClassTypeID,
		PackageID:   input.PackageID,
		Date:        input.Date,
	}
	if err := resolved.Validate(); err != nil {
		return ResolveClassResult{}, err
	}

	slog.Info("attendance_event", "event", "class_resolved", "class_id", resolved.ClassID, "class_type_id", resolved.ClassTypeID, "date", resolved.Date)
	return ResolveClassResult{Class: resolved}, nil
}
