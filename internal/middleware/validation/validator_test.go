package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxMessageLength: 20}))
	app.Post("/api/chat", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/api/session", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"valid message", "/api/chat", "application/json", `{"message":"what is dna"}`, fiber.StatusOK},
		{"missing message passes to handler", "/api/chat", "application/json", `{}`, fiber.StatusOK},
		{"non-string message passes to handler", "/api/chat", "application/json", `{"message":42}`, fiber.StatusOK},
		{"malformed json", "/api/chat", "application/json", `{"message":`, fiber.StatusBadRequest},
		{"too long", "/api/chat", "application/json", `{"message":"` + strings.Repeat("a", 21) + `"}`, fiber.StatusBadRequest},
		{"script tag", "/api/chat", "application/json", `{"message":"<script>x</script>"}`, fiber.StatusBadRequest},
		{"sql words are fine", "/api/chat", "application/json", `{"message":"select a gene"}`, fiber.StatusOK},
		{"too long with trailing slash", "/api/chat/", "application/json", `{"message":"` + strings.Repeat("a", 21) + `"}`, fiber.StatusBadRequest},
		{"script tag with trailing slash", "/api/chat/", "application/json", `{"message":"<script>x</script>"}`, fiber.StatusBadRequest},
		{"script tag in upper case path", "/API/Chat", "application/json", `{"message":"<script>x</script>"}`, fiber.StatusBadRequest},
		{"wrong content type", "/api/chat", "text/plain", `hello`, fiber.StatusUnsupportedMediaType},
		{"other paths skip message checks", "/api/session", "application/json", `{"message":"` + strings.Repeat("a", 30) + `"}`, fiber.StatusOK},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestSanitizeMessage(t *testing.T) {
	assert.Equal(t, "what is dna", SanitizeMessage("  what is\x00 dna \n"))
}
