package gate

import (
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateHelpersIsAuthenticated(t *testing.T) {
	store := NewSessionStore()
	helpers := TemplateHelpers(store)

	isAuthenticated, ok := helpers["is_authenticated"].(func() bool)
	require.True(t, ok)
	assert.False(t, isAuthenticated())

	session := testSession("pilot@grid78.fr")
	store.SetAuth(session.User, session)
	assert.True(t, isAuthenticated())

	store.SetAuth(nil, nil)
	assert.False(t, isAuthenticated())
}

func TestTemplateHelpersNilStore(t *testing.T) {
	helpers := TemplateHelpers(nil)
	isAuthenticated := helpers["is_authenticated"].(func() bool)
	assert.False(t, isAuthenticated())
}

func TestMergeTemplateDataLayersSessionState(t *testing.T) {
	store := NewSessionStore()
	session := testSession("pilot@grid78.fr")
	store.SetAuth(session.User, session)

	merged := MergeTemplateData(store, router.ViewContext{"title": "Tableau de bord"})

	assert.Equal(t, "Tableau de bord", merged["title"])
	assert.Equal(t, session.User, merged[TemplateUserKey])
	assert.Equal(t, true, merged["is_authenticated"])
}

func TestMergeTemplateDataDoesNotMutateInput(t *testing.T) {
	store := NewSessionStore()
	data := router.ViewContext{"title": "Connexion"}

	MergeTemplateData(store, data)

	assert.NotContains(t, data, TemplateUserKey)
	assert.NotContains(t, data, "is_authenticated")
}
