package generate_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeedit/safeedit/internal/generate"
	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/errclass"
)

func TestBuildPrompt_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name string
		req  generate.Request
	}{
		{"prompt_general", generate.Request{Path: "js/auth.js", Content: []byte("function login(){}\n")}},
		{"prompt_performance", generate.Request{Path: "js/chat.js", Kind: "performance", Content: []byte("const a = 1;")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := generate.BuildPrompt(tt.req)
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(out))
		})
	}
}

func TestBuildPrompt_NoEscaping(t *testing.T) {
	out, err := generate.BuildPrompt(generate.Request{Path: "a.js", Content: []byte(`if (a < b && c > "d") {}`)})
	require.NoError(t, err)
	assert.Contains(t, out, `if (a < b && c > "d") {}`)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "const a = 1;", "const a = 1;"},
		{"unfenced keeps whitespace", "\n  const a = 1;\n\n", "\n  const a = 1;\n\n"},
		{"unfenced crlf", "const a = 1;\r\n", "const a = 1;\r\n"},
		{"fence after blank line", "\n```js\nconst a = 1;\n```\n", "const a = 1;"},
		{"crlf fence", "```js\r\nconst a = 1;\r\n```\r\n", "const a = 1;\r"},
		{"plain fence", "```\nconst a = 1;\n```", "const a = 1;"},
		{"language tag", "```javascript\nconst a = 1;\nconst b = 2;\n```\n", "const a = 1;\nconst b = 2;"},
		{"unterminated", "```js\nconst a = 1;", "const a = 1;"},
		{"fence only", "```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generate.StripFences(tt.in))
		})
	}
}

func TestMatchTrailingNewline(t *testing.T) {
	assert.Equal(t, "a\n", string(generate.MatchTrailingNewline([]byte("x\n"), []byte("a"))))
	assert.Equal(t, "a", string(generate.MatchTrailingNewline([]byte("x"), []byte("a\n"))))
	assert.Equal(t, "a\n", string(generate.MatchTrailingNewline([]byte("x\n"), []byte("a\n"))))
	assert.Equal(t, "a", string(generate.MatchTrailingNewline([]byte("x"), []byte("a"))))
	assert.Equal(t, "a\r\n", string(generate.MatchTrailingNewline([]byte("x\r\n"), []byte("a"))))
	assert.Equal(t, "a\r\n", string(generate.MatchTrailingNewline([]byte("x\r\n"), []byte("a\r"))))
}

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func genConfig(url string) config.GenerationConfig {
	cfg := config.Default().Generation
	cfg.BaseURL = url + "/v1"
	return cfg
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "`+"```js\\nconst a = 2;\\n```"+`"}, "finish_reason": "stop"}]
	}`, &seen)

	g := generate.NewOpenAI(genConfig(srv.URL), "test-key")
	assert.Equal(t, "gpt-4", g.Model())

	out, err := g.Generate(context.Background(), generate.Request{Path: "js/main.js", Kind: "general", Content: []byte("const a = 1;")})
	require.NoError(t, err)
	assert.Equal(t, "const a = 2;", generate.StripFences(out))

	assert.Equal(t, "gpt-4", seen["model"])
	assert.InDelta(t, 0.1, seen["temperature"], 1e-6)
	assert.EqualValues(t, 4000, seen["max_completion_tokens"])
	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].(map[string]any)["content"], "const a = 1;")
}

func TestOpenAIGenerator_APIError(t *testing.T) {
	srv := newServer(t, http.StatusUnauthorized, `{"error": {"message": "invalid key", "type": "invalid_request_error"}}`, nil)

	g := generate.NewOpenAI(genConfig(srv.URL), "test-key")
	_, err := g.Generate(context.Background(), generate.Request{Path: "js/main.js", Content: []byte("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrGeneration)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, nil)

	g := generate.NewOpenAI(genConfig(srv.URL), "test-key")
	_, err := g.Generate(context.Background(), generate.Request{Path: "js/main.js", Content: []byte("x")})
	assert.ErrorIs(t, err, errclass.ErrGeneration)
}

func TestOpenAIGenerator_ContextCanceled(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{}`, nil)
	g := generate.NewOpenAI(genConfig(srv.URL), "test-key")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, generate.Request{Path: "js/main.js", Content: []byte("x")})
	assert.ErrorIs(t, err, errclass.ErrGeneration)
}
