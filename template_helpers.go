package gate

import (
	"maps"

	"github.com/goliatone/go-router"
)

// TemplateUserKey is the view-context key the current user is exposed under.
var TemplateUserKey = "current_user"

// TemplateHelpers returns helper data for the view engine's global context.
//
// In templates:
//
//	{% if current_user %}
//	{{ current_user.Email }}
func TemplateHelpers(store *SessionStore) map[string]any {
	return map[string]any{
		"is_authenticated": func() bool {
			return store != nil && store.CurrentUser() != nil
		},
	}
}

// MergeTemplateData layers the current session on top of per-render view
// data so every page can show the signed-in header state.
func MergeTemplateData(store *SessionStore, data router.ViewContext) router.ViewContext {
	merged := router.ViewContext{}
	maps.Copy(merged, data)

	if store != nil {
		snap := store.Snapshot()
		merged[TemplateUserKey] = snap.User
		merged["is_authenticated"] = snap.Authenticated()
	}

	return merged
}
