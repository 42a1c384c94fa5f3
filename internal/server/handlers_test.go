package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/chew-z/llm-nodes/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(baseURL string) *Server {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		ModelID: "test-model",
	}
	return NewServer(cfg, "127.0.0.1", 0)
}

// mockUpstream answers every chat completion with "answer <n>".
func mockUpstream(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":"answer %d"}}]}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	return doRequestWithType(s, method, path, body, "application/json")
}

func doRequestWithType(s *Server, method, path, body, contentType string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	s.router.ServeHTTP(w, req)
	return w
}

// keyRecorder counts chat completions and remembers the last Authorization header.
func keyRecorder(t *testing.T, hits *atomic.Int32, auth *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleVersion(t *testing.T) {
	s := setupTestServer("http://unused")
	w := doRequest(s, "GET", "/api/version", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), Version)
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer("http://unused")
	w := doRequest(s, "GET", "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleObjectInfo(t *testing.T) {
	s := setupTestServer("http://unused")
	w := doRequest(s, "GET", "/object_info", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "XZ Image To Text", resp["XZImageToText"]["display_name"])
	assert.Equal(t, "response", resp["XZLlmResponse"]["output_name"])
}

func TestHandleDisplayNames(t *testing.T) {
	s := setupTestServer("http://unused")
	w := doRequest(s, "GET", "/api/display_names", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"XZImageToText":"XZ Image To Text","XZLlmResponse":"XZ LLM Response"}`, w.Body.String())
}

func TestHandleNodeInfo(t *testing.T) {
	s := setupTestServer("http://unused")

	w := doRequest(s, "GET", "/object_info/XZLlmResponse", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user_message")

	w = doRequest(s, "GET", "/object_info/Nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "node 'Nope' not found")
}

func TestRun_UnknownNode(t *testing.T) {
	s := setupTestServer("http://unused")
	w := doRequest(s, "POST", "/nodes/Nope/run", "{}")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunResponse_Success(t *testing.T) {
	var hits atomic.Int32
	upstream := mockUpstream(t, &hits)
	s := setupTestServer(upstream.URL + "/")

	w := doRequest(s, "POST", "/nodes/XZLlmResponse/run", `{"user_message":"hi","seed":5}`)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"response":"answer 1"}`, w.Body.String())
	assert.Equal(t, int32(1), hits.Load())
}

func TestRunResponse_Validation(t *testing.T) {
	var hits atomic.Int32
	upstream := mockUpstream(t, &hits)
	s := setupTestServer(upstream.URL)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"missing user_message", `{}`, "user_message is required"},
		{"explicit empty api_key", `{"user_message":"hi","api_key":""}`, "api_key is required"},
		{"explicit empty model_id", `{"user_message":"hi","model_id":""}`, "model_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, "POST", "/nodes/XZLlmResponse/run", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantError)
		})
	}
	assert.Equal(t, int32(0), hits.Load(), "validation failures must not reach upstream")
}

func TestRunResponse_InvalidJSON(t *testing.T) {
	s := setupTestServer("http://unused")
	w := doRequest(s, "POST", "/nodes/XZLlmResponse/run", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request")
}

func TestRunResponse_UpstreamUnauthorized(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer upstream.Close()
	s := setupTestServer(upstream.URL)

	w := doRequest(s, "POST", "/nodes/XZLlmResponse/run", `{"user_message":"hi"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "401")
	assert.Contains(t, w.Body.String(), "bad key")
}

func TestRunResponse_MalformedUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"chat.completion"}`))
	}))
	defer upstream.Close()
	s := setupTestServer(upstream.URL)

	w := doRequest(s, "POST", "/nodes/XZLlmResponse/run", `{"user_message":"hi"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "response missing choices")
}

func TestRunResponse_ConnectionError(t *testing.T) {
	s := setupTestServer("http://localhost:99999")
	w := doRequest(s, "POST", "/nodes/XZLlmResponse/run", `{"user_message":"hi"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "request failed")
}

func TestRunCaption_SingleTensorImage(t *testing.T) {
	var hits atomic.Int32
	upstream := mockUpstream(t, &hits)
	s := setupTestServer(upstream.URL)

	body := `{"image":{"shape":[1,1,2,3],"data":[1,0,0,0,1,0]}}`
	w := doRequest(s, "POST", "/nodes/XZImageToText/run", body)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"caption":"answer 1"}`, w.Body.String())
}

func TestRunCaption_BatchAndFilesKeepOrder(t *testing.T) {
	var hits atomic.Int32
	upstream := mockUpstream(t, &hits)
	s := setupTestServer(upstream.URL)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	file := base64.StdEncoding.EncodeToString(buf.Bytes())

	body := fmt.Sprintf(`{"image":{"shape":[2,1,1,3],"data":[0,0,0,1,1,1]},"image_files":[%q]}`, file)
	w := doRequest(s, "POST", "/nodes/XZImageToText/run", body)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"caption":["answer 1","answer 2","answer 3"]}`, w.Body.String())
}

func TestRunCaption_Errors(t *testing.T) {
	var hits atomic.Int32
	upstream := mockUpstream(t, &hits)
	s := setupTestServer(upstream.URL)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"no images", `{}`, "image is required"},
		{"empty prompt", `{"prompt":"","image":{"shape":[1,1,1,3],"data":[0,0,0]}}`, "prompt is required"},
		{"bad tensor", `{"image":{"shape":[1,2,2,3],"data":[0]}}`, "invalid image tensor"},
		{"overflowing tensor", `{"image":{"shape":[4611686018427387904,4,1,1],"data":[]}}`, "invalid image tensor"},
		{"bad file", `{"image_files":["aGVsbG8="]}`, "unsupported image type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, "POST", "/nodes/XZImageToText/run", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantError)
		})
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestRun_ConfiguredKeyOnlyGoesToConfiguredBaseURL(t *testing.T) {
	var configuredHits, otherHits atomic.Int32
	var otherAuth atomic.Value
	configured := mockUpstream(t, &configuredHits)
	other := keyRecorder(t, &otherHits, &otherAuth)
	s := setupTestServer(configured.URL)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"response", "/nodes/XZLlmResponse/run", fmt.Sprintf(`{"base_url":%q,"user_message":"hi"}`, other.URL)},
		{"caption", "/nodes/XZImageToText/run", fmt.Sprintf(`{"base_url":%q,"image":{"shape":[1,1,1,3],"data":[0,0,0]}}`, other.URL)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, "POST", tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "api_key is required")
		})
	}
	assert.Equal(t, int32(0), otherHits.Load())
	assert.Equal(t, int32(0), configuredHits.Load())
}

func TestRun_OtherBaseURLWithOwnKey(t *testing.T) {
	var hits atomic.Int32
	var auth atomic.Value
	other := keyRecorder(t, &hits, &auth)
	s := setupTestServer("http://configured.invalid")

	body := fmt.Sprintf(`{"base_url":%q,"api_key":"caller-key","user_message":"hi"}`, other.URL)
	w := doRequest(s, "POST", "/nodes/XZLlmResponse/run", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"response":"ok"}`, w.Body.String())
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "Bearer caller-key", auth.Load())
}

func TestRun_ConfiguredBaseURLSpelledDifferently(t *testing.T) {
	var hits atomic.Int32
	upstream := mockUpstream(t, &hits)
	s := setupTestServer(upstream.URL)

	body := fmt.Sprintf(`{"base_url":%q,"user_message":"hi"}`, upstream.URL+"//")
	w := doRequest(s, "POST", "/nodes/XZLlmResponse/run", body)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int32(1), hits.Load())
}

func TestRun_RequiresJSONContentType(t *testing.T) {
	var hits atomic.Int32
	upstream := mockUpstream(t, &hits)
	s := setupTestServer(upstream.URL)

	tests := []struct {
		name        string
		contentType string
		wantCode    int
	}{
		{"text/plain", "text/plain", http.StatusUnsupportedMediaType},
		{"form", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"missing", "", http.StatusUnsupportedMediaType},
		{"json with charset", "application/json; charset=utf-8", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequestWithType(s, "POST", "/nodes/XZLlmResponse/run", `{"user_message":"hi"}`, tt.contentType)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, int32(1), hits.Load())
}

func preflight(s *Server, origin string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/nodes/XZLlmResponse/run", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	s.router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}}
	s := NewServer(cfg, "127.0.0.1", 0)

	w := preflight(s, "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight(s, "https://elsewhere.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_OffByDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	s := NewServer(&cfg, "127.0.0.1", 0)

	w := preflight(s, "https://elsewhere.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
