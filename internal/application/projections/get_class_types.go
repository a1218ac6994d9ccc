package projections

import (
	"context"
	"sort"

	"courtside/internal/adapters/academy"
)

// ClassTypeAPI defines the academy client surface for listing class types.
type ClassTypeAPI interface {
	ListClassTypes(ctx context.Context) ([]academy.ClassType, error)
}

// ClassTypeView is one selectable class category.
type ClassTypeView struct {
	ID   string
	Name string
}

// GetClassTypesResult carries the query result.
type GetClassTypesResult struct {
	Types []ClassTypeView
}

// GetClassTypesDeps holds dependencies for GetClassTypes.
type GetClassTypesDeps struct {
	Academy ClassTypeAPI
}

// QueryGetClassTypes retrieves the selectable class types, sorted by name for
// a stable dropdown.
func QueryGetClassTypes(ctx context.Context, deps GetClassTypesDeps) (GetClassTypesResult, error) {
	types, err := deps.Academy.ListClassTypes(ctx)
	if err != nil {
		return GetClassTypesResult{}, err
	}

	result := GetClassTypesResult{Types: make([]ClassTypeView, 0, len(types))}
	for _, t := range types {
		result.Types = append(result.Types, ClassTypeView{ID: t.ID, Name: t.Name})
	}
	sort.Slice(result.Types, func(i, j int) bool {
		return result.Types[i].Name < result.Types[j].Name
	})
	return result, nil
}
