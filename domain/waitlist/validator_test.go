package waitlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{"simple address", "user@example.com", true},
		{"subdomain", "user@mail.example.co.uk", true},
		{"plus tag", "user+tag@example.com", true},
		{"empty", "", false},
		{"missing at", "userexample.com", false},
		{"missing local part", "@example.com", false},
		{"missing domain", "user@", false},
		{"no dot in domain", "user@localhost", false},
		{"dot first in domain", "user@.com", false},
		{"dot last in domain", "user@com.", false},
		{"two ats", "user@@example.com", false},
		{"at in domain", "user@foo@example.com", false},
		{"inner space", "us er@example.com", false},
		{"tab", "user\t@example.com", false},
		{"newline", "user@example.com\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidEmail(tt.email), "email %q", tt.email)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  USER@Example.COM  "))
	assert.Equal(t, "user@example.com", NormalizeEmail("user@example.com"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNewListQuery(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		q := NewListQuery(0, 0, "", "")
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, DefaultPageSize, q.Limit)
		assert.Equal(t, "createdAt", q.SortBy)
		assert.Equal(t, "created_at", q.SortColumn)
		assert.Equal(t, "desc", q.SortOrder)
	})

	t.Run("limit clamped to maximum", func(t *testing.T) {
		q := NewListQuery(1, 5000, "createdAt", "asc")
		assert.Equal(t, MaxPageSize, q.Limit)
	})

	t.Run("negative page becomes first page", func(t *testing.T) {
		q := NewListQuery(-3, 10, "email", "asc")
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, 0, q.offset())
	})

	t.Run("unknown sort field falls back", func(t *testing.T) {
		q := NewListQuery(1, 10, "ipAddress", "asc")
		assert.Equal(t, "createdAt", q.SortBy)
		assert.Equal(t, "created_at", q.SortColumn)
	})

	t.Run("unknown sort order becomes desc", func(t *testing.T) {
		q := NewListQuery(1, 10, "email", "sideways")
		assert.Equal(t, "desc", q.SortOrder)
	})

	t.Run("offset follows page and limit", func(t *testing.T) {
		q := NewListQuery(3, 25, "email", "asc")
		assert.Equal(t, 50, q.offset())
	})
}
