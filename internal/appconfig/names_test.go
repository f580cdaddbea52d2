package appconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamingHelpers(t *testing.T) {
	tests := []struct {
		in, plural, snake, kebab, route string
	}{
		{"Product", "Products", "product", "product", "products"},
		{"Category", "Categories", "category", "category", "categories"},
		{"Day", "Days", "day", "day", "days"},
		{"Status", "Statuses", "status", "status", "statuses"},
		{"BlogPost", "BlogPosts", "blog_post", "blog-post", "blog-posts"},
		{"Blog_post", "Blog_posts", "blog_post", "blog-post", "blog-posts"},
		{"startsAt", "startsAts", "starts_at", "starts-at", "starts-ats"},
		{"HTTPRequest", "HTTPRequests", "http_request", "http-request", "http-requests"},
		{"line_item", "line_items", "line_item", "line-item", "line-items"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.plural, Plural(tt.in))
			assert.Equal(t, tt.snake, SnakeCase(tt.in))
			assert.Equal(t, tt.kebab, KebabCase(tt.in))
			assert.Equal(t, tt.snake, TableName(tt.in))
			assert.Equal(t, tt.route, RouteName(tt.in))
		})
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"starts", "At"}, Words("startsAt"))
	assert.Equal(t, []string{"blog", "post"}, Words("blog_post"))
	assert.Empty(t, Words(""))
}
