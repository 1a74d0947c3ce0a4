package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query  string
		page   int
		limit  int
		offset int
	}{
		{"", 1, 20, 0},
		{"?page=3&limit=10", 3, 10, 20},
		{"?page=0&limit=-5", 1, 20, 0},
		{"?page=abc&limit=xyz", 1, 20, 0},
		{"?page=2&limit=100000000", 2, MaxLimit, MaxLimit},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			var got Pagination
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				got = ParsePagination(c)
				return c.SendStatus(fiber.StatusNoContent)
			})

			_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/"+tc.query, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, Pagination{Page: tc.page, Limit: tc.limit, Offset: tc.offset}, got)
		})
	}
}
