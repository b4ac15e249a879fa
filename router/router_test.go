package router

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiteralBeatsParamOnTieBreak(t *testing.T) {
	r := New()

	assert.NoError(t, r.Add("GET", "/users/{id}", "byID", nil))
	assert.NoError(t, r.Add("GET", "/users/me", "me", nil))

	m, miss := r.Lookup("GET", "/users/me")
	assert.Nil(t, miss)
	assert.Equal(t, "me", m.Route.Handler)
	assert.Empty(t, m.PathParams)

	m, miss = r.Lookup("GET", "/users/42")
	assert.Nil(t, miss)
	assert.Equal(t, "byID", m.Route.Handler)
	assert.Equal(t, "42", m.PathParams["id"])
}

func TestPathParamMatchesRemainderIncludingSlashes(t *testing.T) {
	r := New()
	assert.NoError(t, r.Add("GET", "/files/{path:path}", "files", nil))

	m, miss := r.Lookup("GET", "/files/a/b/c.txt")
	assert.Nil(t, miss)
	assert.Equal(t, "files", m.Route.Handler)
	assert.Equal(t, "a/b/c.txt", m.PathParams["path"])
}

func TestMethodNotAllowedCarriesSortedAllowList(t *testing.T) {
	r := New()
	assert.NoError(t, r.Add("GET", "/widgets", "list", nil))
	assert.NoError(t, r.Add("POST", "/widgets", "create", nil))
	assert.NoError(t, r.Add("DELETE", "/widgets", "destroy", nil))

	m, miss := r.Lookup("PUT", "/widgets")
	assert.Nil(t, m.Route)
	if assert.NotNil(t, miss) {
		allowed := append([]string(nil), miss.AllowedMethods...)
		sort.Strings(allowed)
		assert.Equal(t, []string{"DELETE", "GET", "POST"}, allowed)
	}
}

func TestNoMatchReturnsEmptyMiss(t *testing.T) {
	r := New()
	assert.NoError(t, r.Add("GET", "/widgets", "list", nil))

	m, miss := r.Lookup("GET", "/does-not-exist")
	assert.Nil(t, m.Route)
	if assert.NotNil(t, miss) {
		assert.Empty(t, miss.AllowedMethods)
	}
}

func TestDuplicateRegistrationReturnsConflictError(t *testing.T) {
	r := New()
	assert.NoError(t, r.Add("GET", "/widgets", "list", nil))

	err := r.Add("GET", "/widgets", "other", nil)
	if assert.Error(t, err) {
		_, ok := err.(*ConflictError)
		assert.True(t, ok)
	}
}

func TestTypedParamIsParsedButNotEnforced(t *testing.T) {
	r := New()
	assert.NoError(t, r.Add("GET", "/items/{id:int}", "item", nil))

	m, miss := r.Lookup("GET", "/items/not-a-number")
	assert.Nil(t, miss)
	if assert.NotNil(t, m.Route) {
		assert.Equal(t, "not-a-number", m.PathParams["id"])
		assert.Equal(t, "int", m.Route.Metadata["param:id"])
	}
}

func TestWildcardSegmentMatchesRemainder(t *testing.T) {
	r := New()
	assert.NoError(t, r.Add("GET", "/static/*", "static", nil))

	m, miss := r.Lookup("GET", "/static/css/app.css")
	assert.Nil(t, miss)
	if assert.NotNil(t, m.Route) {
		assert.Equal(t, "css/app.css", m.PathParams["*"])
	}
}

func TestCleanPathCollapsesDuplicateSlashes(t *testing.T) {
	r := New()
	assert.NoError(t, r.Add("GET", "/a/b", "ab", nil))

	m, miss := r.Lookup("GET", "a//b")
	assert.Nil(t, miss)
	assert.NotNil(t, m.Route)
}

func TestRemoveDropsOnlyTheGivenMethod(t *testing.T) {
	r := New()
	assert.NoError(t, r.Add("GET", "/widgets", "list", nil))
	assert.NoError(t, r.Add("POST", "/widgets", "create", nil))

	assert.True(t, r.Remove("GET", "/widgets"))
	assert.False(t, r.Remove("GET", "/widgets"))

	_, miss := r.Lookup("GET", "/widgets")
	if assert.NotNil(t, miss) {
		assert.Equal(t, []string{"POST"}, miss.AllowedMethods)
	}

	m, miss := r.Lookup("POST", "/widgets")
	assert.Nil(t, miss)
	assert.Equal(t, "create", m.Route.Handler)
}

func TestDuplicateParamNameInPatternIsRejected(t *testing.T) {
	r := New()
	err := r.Add("GET", "/a/{id}/b/{id}", "h", nil)
	assert.Error(t, err)
}
