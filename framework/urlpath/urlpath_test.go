package urlpath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/km-arc/go-modular/framework/urlpath"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"empty base", []string{"", "/admin", "users"}, "/admin/users"},
		{"no leading slash", []string{"admin", "users"}, "/admin/users"},
		{"trailing slash base", []string{"/admin/", "users"}, "/admin/users"},
		{"both empty", []string{"", ""}, "/"},
		{"nothing", nil, "/"},
		{"root only", []string{"/"}, "/"},
		{"root and action", []string{"/", "/"}, "/"},
		{"double slashes", []string{"//api//", "//v1/"}, "/api/v1"},
		{"backslashes", []string{`\api`, `users\list`}, "/api/users/list"},
		{"param segment", []string{"/users", ":id"}, "/users/:id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, urlpath.Join(tt.parts...))
		})
	}
}

func TestJoin_BaseVariantsCompose(t *testing.T) {
	for _, base := range []string{"/admin", "/admin/", "admin"} {
		assert.Equal(t, "/admin/users", urlpath.Join("", base, "users"), "base %q", base)
	}
}

func TestJoin_Associative(t *testing.T) {
	left := urlpath.Join(urlpath.Join("/api", "v1/"), "users")
	right := urlpath.Join("/api", urlpath.Join("v1/", "users"))
	assert.Equal(t, left, right)
}

func TestToPattern(t *testing.T) {
	assert.Equal(t, "/users/{id}", urlpath.ToPattern("/users/:id"))
	assert.Equal(t, "/users/{id}/posts/{post_id}", urlpath.ToPattern("/users/:id/posts/:post_id"))
	assert.Equal(t, "/users/{id}", urlpath.ToPattern("/users/{id}"))
	assert.Equal(t, "/", urlpath.ToPattern("/"))
}
