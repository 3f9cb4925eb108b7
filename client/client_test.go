package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/subsetter/model"
)

// decodeBody reads a JSON request body, inflating it when needed.
func decodeBody(t *testing.T, r *http.Request, out any) {
	t.Helper()
	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if !assert.NoError(t, err) {
			return
		}
		defer gz.Close()
		body = gz
	}
	assert.NoError(t, json.NewDecoder(body).Decode(out))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(zerolog.Nop(), srv.URL+"/intake/organizations/acme/workspaces/web", opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Subset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/intake/organizations/acme/workspaces/web/subset", r.URL.Path)
		assert.Equal(t, "Bearer v1:acme/web:secret", r.Header.Get("Authorization"))
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "pytest", r.Header.Get("X-Test-Runner"))
		assert.Equal(t, "subsetter/1.0", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var req model.SubsetRequest
		decodeBody(t, r, &req)
		assert.Equal(t, "pytest", req.TestRunner)
		assert.Len(t, req.TestPaths, 2)
		assert.Equal(t, "subset-by-percentage", req.Goal.Type)

		_, _ = w.Write([]byte(`{"testPaths": [[{"type": "file", "name": "a.py"}]], "rest": [[{"type": "file", "name": "b.py"}]], "subsettingId": 42, "summary": {"subset": {"rate": 50, "duration": 10}, "rest": {"rate": 50, "duration": 10}}}`))
	}, WithToken("v1:acme/web:secret"), WithTestRunner("pytest"), WithUserAgent("subsetter/1.0"))

	resp, err := c.Subset(context.Background(), &model.SubsetRequest{
		TestPaths: []model.TestPath{
			model.NewTestPath(model.TypeFile, "a.py"),
			model.NewTestPath(model.TypeFile, "b.py"),
		},
		TestRunner: "pytest",
		Goal:       model.Percentage(0.5).Wire(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), resp.SubsettingID)
	require.Equal(t, []model.TestPath{model.NewTestPath(model.TypeFile, "a.py")}, resp.TestPaths)
	require.True(t, resp.Summary.Complete())
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "validation error",
			status: http.StatusUnprocessableEntity,
			body:   `{"reason": "prioritized tests mapping is malformed"}`,
			check: func(t *testing.T, err error) {
				var verr *model.ServerValidationError
				require.ErrorAs(t, err, &verr)
				require.Equal(t, "prioritized tests mapping is malformed", verr.Reason)
				require.Equal(t, "Error: prioritized tests mapping is malformed", err.Error())
			},
		},
		{
			name:   "service unavailable",
			status: http.StatusServiceUnavailable,
			body:   "upstream down",
			check: func(t *testing.T, err error) {
				var terr *model.TransportError
				require.ErrorAs(t, err, &terr)
				require.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)
				require.Equal(t, "upstream down", terr.Body)
			},
		},
		{
			name:   "undecodable response",
			status: http.StatusOK,
			body:   "<html>",
			check: func(t *testing.T, err error) {
				require.True(t, model.IsTransport(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Subset(context.Background(), &model.SubsetRequest{})
			tt.check(t, err)
		})
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(zerolog.Nop(), url)
	require.NoError(t, err)
	_, err = c.Slice(context.Background(), 1, &model.SliceRequest{Bin: model.Bin{Index: 1, Count: 2}})
	require.True(t, model.IsTransport(err))
}

func TestClient_Slice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/intake/organizations/acme/workspaces/web/subset/456/slice", r.URL.Path)
		assert.Empty(t, r.Header.Get("Content-Encoding"))

		var req model.SliceRequest
		decodeBody(t, r, &req)
		assert.Equal(t, model.Bin{Index: 1, Count: 2}, req.Bin)
		assert.Len(t, req.SameBin, 1)

		_, _ = w.Write([]byte(`{"testPaths": [], "rest": [], "subsettingId": 456}`))
	})

	resp, err := c.Slice(context.Background(), 456, &model.SliceRequest{
		Bin:     model.Bin{Index: 1, Count: 2},
		SameBin: [][]model.TestPath{{model.NewTestPath(model.TypeClass, "A")}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(456), resp.SubsettingID)
}

func TestClient_EventsAndSession(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/intake/organizations/acme/workspaces/web/builds/main/test_sessions":
			_, _ = w.Write([]byte(`{"id": 7}`))
		case "/intake/organizations/acme/workspaces/web/builds/main/test_sessions/7/events":
			var payload model.EventsPayload
			decodeBody(t, r, &payload)
			assert.Len(t, payload.Events, 1)
			assert.Equal(t, "raw", payload.TestRunner)
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	session, err := c.CreateSession(context.Background(), "main", SessionOptions{})
	require.NoError(t, err)
	require.Equal(t, "builds/main/test_sessions/7", session)

	err = c.Events(context.Background(), session, &model.EventsPayload{
		Events:     []model.CaseEvent{{Type: model.EventTypeCase, TestPath: model.NewTestPath(model.TypeFile, "a.py")}},
		TestRunner: "raw",
	})
	require.NoError(t, err)
	require.Len(t, paths, 2)
}

func TestClient_DryRun(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, WithDryRun(true))

	_, err := c.Subset(context.Background(), &model.SubsetRequest{})
	require.True(t, errors.Is(err, ErrDryRun))
	require.False(t, called)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(zerolog.Nop(), "not a url")
	require.Error(t, err)
}
