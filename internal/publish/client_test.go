package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjy-dev/covpub/internal/coverage"
)

func mustFile(t *testing.T, path string, fully, partial, uncovered []int) *coverage.FileCoverage {
	t.Helper()
	b := coverage.NewBuilder()
	for _, l := range fully {
		b.AddFullyCovered(l)
	}
	for _, l := range partial {
		b.AddPartiallyCovered(l)
	}
	for _, l := range uncovered {
		b.AddUncovered(l)
	}
	fc, err := b.Build(path)
	require.NoError(t, err)
	return fc
}

func TestConfig_URL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantPath string
	}{
		{"commit only", Config{Host: "http://x", CommitID: "abc"}, "/rest/code-coverage/1.0/commits/abc"},
		{"project and repo", Config{Host: "http://x", CommitID: "abc", ProjectKey: "P", RepoSlug: "s"}, "/rest/code-coverage/1.0/projects/P/repos/s/commits/abc"},
		{"project without repo", Config{Host: "http://x", CommitID: "abc", ProjectKey: "P"}, "/rest/code-coverage/1.0/commits/abc"},
		{"trailing slash on host", Config{Host: "https://x/", CommitID: "abc"}, "/rest/code-coverage/1.0/commits/abc"},
		{"host with context path", Config{Host: "https://x/bitbucket", CommitID: "abc"}, "/bitbucket/rest/code-coverage/1.0/commits/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.cfg.URL()
			require.NoError(t, err)
			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, u.Path)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	for _, host := range []string{"", "x", "ftp://x", "localhost:7990"} {
		err := Config{Host: host, CommitID: "abc"}.Validate()
		assert.ErrorIs(t, err, ErrInvalidHost, host)
	}

	assert.NoError(t, Config{Host: "HTTPS://x", CommitID: "abc"}.Validate())
	assert.Error(t, Config{Host: "http://x"}.Validate())
	assert.Error(t, Config{Host: "http://x", CommitID: "abc", Timeout: -time.Second}.Validate())
}

func TestNewClient_InvalidHostFailsBeforeNetwork(t *testing.T) {
	_, err := NewClient(Config{Host: "example.com", CommitID: "abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidHost)
}

func TestClient_NewRequest_Authorization(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"basic wins over token", Config{User: "u", Password: "p", Token: "t"}, "Basic " + base64.StdEncoding.EncodeToString([]byte("u:p"))},
		{"token only", Config{Token: "t"}, "Bearer t"},
		{"user without password uses token", Config{User: "u", Token: "t"}, "Bearer t"},
		{"no credentials", Config{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Host = "http://x"
			tt.cfg.CommitID = "abc"
			c, err := NewClient(tt.cfg)
			require.NoError(t, err)

			req, err := c.NewRequest(context.Background(), Payload{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Header.Get("Authorization"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			assert.Equal(t, http.MethodPost, req.Method)
			assert.NotEmpty(t, req.Header.Get("X-Request-Id"))
		})
	}
}

func TestClient_Publish(t *testing.T) {
	var (
		gotPath string
		gotBody Payload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := NewClient(Config{Host: server.URL, CommitID: "12345", Timeout: 5 * time.Second})
	require.NoError(t, err)

	payload := BuildPayload([]*coverage.FileCoverage{
		mustFile(t, "sub-project-1/src/main/java/firstPackage/secondPackage/ClassWithPackage.java", []int{7, 8}, []int{20}, []int{24}),
	})
	require.NoError(t, c.Publish(context.Background(), payload))

	assert.Equal(t, "/rest/code-coverage/1.0/commits/12345", gotPath)
	assert.Equal(t, payload, gotBody)
}

func TestClient_Publish_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"invalid coverage"}]}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{Host: server.URL, CommitID: "abc"})
	require.NoError(t, err)

	err = c.Publish(context.Background(), Payload{})
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid coverage")
}

func TestClient_Publish_ErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := NewClient(Config{Host: server.URL, CommitID: "abc"})
	require.NoError(t, err)

	err = c.Publish(context.Background(), Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code 500")
}

func TestClient_Publish_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	c, err := NewClient(Config{Host: addr, CommitID: "abc"})
	require.NoError(t, err)

	err = c.Publish(context.Background(), Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to perform request")
}
