package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/testing/fixtures"
)

func newDispatcher(t *testing.T) (*Dispatcher, *stack, *observer.ObservedLogs) {
	t.Helper()
	s := newStack(t, fixtures.Registry(t))
	core, logs := observer.New(zapcore.DebugLevel)
	return NewDispatcher(s.models, s.serializer, zap.New(core)), s, logs
}

func dispatch(t *testing.T, d *Dispatcher, req Request) *Response {
	t.Helper()
	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func count(t *testing.T, s *stack, app, model string) int {
	t.Helper()
	n, err := s.store.For(fixtures.Model(t, s.reg, app, model)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestDispatcher_GetOne(t *testing.T) {
	d, s, _ := newDispatcher(t)
	fixtures.SeedMovies(t, s.reg, s.store)

	resp := dispatch(t, d, Request{Method: http.MethodGet, App: "testapp", Model: "actor", ID: "1"})

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.False(t, resp.Empty)
	assert.Equal(t, Node{
		"id":   "1",
		"name": "Tom Hanks",
		"movies": []Node{
			{"id": "1", "title": "Big"},
			{"id": "2", "title": "The Da Vinci Code"},
		},
	}, resp.Body)
}

func TestDispatcher_GetAll(t *testing.T) {
	d, s, _ := newDispatcher(t)
	fixtures.SeedMovies(t, s.reg, s.store)

	resp := dispatch(t, d, Request{Method: http.MethodGet, App: "TESTAPP", Model: "Actor"})

	assert.Equal(t, http.StatusOK, resp.Status)
	nodes, ok := resp.Body.([]Node)
	require.True(t, ok)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Tom Hanks", nodes[0]["name"])
	assert.Equal(t, "Ian McKellen", nodes[1]["name"])
}

func TestDispatcher_NotFound(t *testing.T) {
	d, s, logs := newDispatcher(t)
	fixtures.SeedMovies(t, s.reg, s.store)

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown model get", Request{Method: http.MethodGet, App: "testapp", Model: "ghostmodel"}},
		{"unknown model post", Request{Method: http.MethodPost, App: "testapp", Model: "ghostmodel", Payload: map[string]string{"name": "x"}}},
		{"unknown model delete", Request{Method: http.MethodDelete, App: "testapp", Model: "ghostmodel"}},
		{"unknown app", Request{Method: http.MethodGet, App: "ghostapp", Model: "actor"}},
		{"unknown id get", Request{Method: http.MethodGet, App: "testapp", Model: "actor", ID: "999999"}},
		{"unknown id post", Request{Method: http.MethodPost, App: "testapp", Model: "actor", ID: "999999", Payload: map[string]string{"name": "x"}}},
		{"unknown id delete", Request{Method: http.MethodDelete, App: "testapp", Model: "actor", ID: "999999"}},
		{"malformed id", Request{Method: http.MethodGet, App: "testapp", Model: "actor", ID: "abc"}},
		{"unsupported method", Request{Method: http.MethodPut, App: "testapp", Model: "actor", ID: "1"}},
		{"unsupported method on collection", Request{Method: http.MethodPatch, App: "testapp", Model: "actor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := dispatch(t, d, tt.req)
			assert.Equal(t, http.StatusNotFound, resp.Status)
			assert.True(t, resp.Empty)
			assert.Nil(t, resp.Body)
		})
	}

	assert.Equal(t, len(tests), logs.FilterMessage("not found").Len())
	for _, entry := range logs.FilterMessage("not found").All() {
		assert.Equal(t, zapcore.DebugLevel, entry.Level)
	}

	// nothing was written or removed
	assert.Equal(t, 2, count(t, s, "testapp", "actor"))
}

func TestDispatcher_Create(t *testing.T) {
	d, s, _ := newDispatcher(t)

	resp := dispatch(t, d, Request{
		Method:  http.MethodPost,
		App:     "testapp",
		Model:   "actor",
		Payload: map[string]string{"name": "Tom Hanks", "unknown": "ignored", "movies": "1"},
	})

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, Node{"id": "1", "name": "Tom Hanks", "movies": []Node{}}, resp.Body)
	assert.Equal(t, 1, count(t, s, "testapp", "actor"))
}

func TestDispatcher_CreateWithExplicitKey(t *testing.T) {
	d, s, _ := newDispatcher(t)

	resp := dispatch(t, d, Request{
		Method:  http.MethodPost,
		App:     "testapp",
		Model:   "movie",
		Payload: map[string]string{"id": "42", "title": "Cast Away"},
	})
	assert.Equal(t, Node{"id": "42", "title": "Cast Away", "actors": []Node{}}, resp.Body)

	resp = dispatch(t, d, Request{Method: http.MethodGet, App: "testapp", Model: "movie", ID: "42"})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, count(t, s, "testapp", "movie"))
}

func TestDispatcher_Update(t *testing.T) {
	d, s, _ := newDispatcher(t)
	fixtures.SeedMovies(t, s.reg, s.store)

	resp := dispatch(t, d, Request{
		Method:  http.MethodPost,
		App:     "testapp",
		Model:   "actor",
		ID:      "2",
		Payload: map[string]string{"name": "Sir Ian McKellen"},
	})

	assert.Equal(t, http.StatusOK, resp.Status)
	body := resp.Body.(Node)
	assert.Equal(t, "2", body["id"])
	assert.Equal(t, "Sir Ian McKellen", body["name"])
	assert.Len(t, body["movies"], 2)
	assert.Equal(t, 2, count(t, s, "testapp", "actor"))
}

func TestDispatcher_ConstraintViolationLeavesNoRow(t *testing.T) {
	d, s, _ := newDispatcher(t)

	resp, err := d.Dispatch(context.Background(), Request{
		Method:  http.MethodPost,
		App:     "testapp",
		Model:   "actor",
		Payload: map[string]string{"nickname": "no name"},
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, crud.ErrConstraint)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Zero(t, count(t, s, "testapp", "actor"))
}

func TestDispatcher_ForeignKeyColumnsAreNotBound(t *testing.T) {
	d, s, _ := newDispatcher(t)
	fixtures.SeedMovies(t, s.reg, s.store)

	_, err := d.Dispatch(context.Background(), Request{
		Method:  http.MethodPost,
		App:     "testapp",
		Model:   "role",
		Payload: map[string]string{"actor_id": "1", "movie_id": "1", "actor": "1"},
	})
	assert.ErrorIs(t, err, crud.ErrNotNullViolation)
	assert.Equal(t, 4, count(t, s, "testapp", "role"))
}

func TestDispatcher_InvalidValue(t *testing.T) {
	d, s, _ := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), Request{
		Method:  http.MethodPost,
		App:     "testapp",
		Model:   "megamodel",
		Payload: map[string]string{"integer": "twelve"},
	})
	assert.ErrorIs(t, err, crud.ErrInvalidValue)
	assert.Zero(t, count(t, s, "testapp", "megamodel"))
}

func TestDispatcher_DeleteOne(t *testing.T) {
	d, s, _ := newDispatcher(t)
	fixtures.SeedMovies(t, s.reg, s.store)

	resp := dispatch(t, d, Request{Method: http.MethodDelete, App: "testapp", Model: "movie", ID: "2"})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.Empty)

	resp = dispatch(t, d, Request{Method: http.MethodGet, App: "testapp", Model: "movie"})
	var titles []string
	for _, n := range resp.Body.([]Node) {
		titles = append(titles, n["title"].(string))
	}
	assert.ElementsMatch(t, []string{"Big", "Richard III"}, titles)

	resp = dispatch(t, d, Request{Method: http.MethodDelete, App: "testapp", Model: "movie", ID: "2"})
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestDispatcher_DeleteAll(t *testing.T) {
	d, s, logs := newDispatcher(t)
	fixtures.SeedMovies(t, s.reg, s.store)

	resp := dispatch(t, d, Request{Method: http.MethodDelete, App: "testapp", Model: "actor"})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.Empty)
	assert.Zero(t, count(t, s, "testapp", "actor"))
	assert.Equal(t, 3, count(t, s, "testapp", "movie"))

	entries := logs.FilterMessage("deleted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["count"])

	resp = dispatch(t, d, Request{Method: http.MethodGet, App: "testapp", Model: "actor"})
	assert.Equal(t, []Node{}, resp.Body)
}

func TestDispatcher_FieldTypesRoundTrip(t *testing.T) {
	d, _, _ := newDispatcher(t)

	payload := map[string]string{
		"big_integer":              "9007199254740993",
		"boolean":                  "true",
		"char":                     "c",
		"comma_separated_integers": "1,2,3",
		"date":                     "2024-03-01",
		"date_time":                "2024-03-01T10:20:30.5Z",
		"decimal":                  "12.50",
		"email":                    "someone@example.com",
		"file":                     "uploads/a.txt",
		"file_path":                "/srv/a.txt",
		"floatx":                   "1.25",
		"generic_ip_address":       "2001:db8::1",
		"image":                    "uploads/a.png",
		"integer":                  "-7",
		"ip_address":               "192.168.0.1",
		"null_boolean":             "false",
		"positive_integer":         "7",
		"positive_small_integer":   "3",
		"slug":                     "a-slug",
		"small_integer":            "2",
		"text":                     "Some longer text.",
		"time":                     "10:20:30",
		"url":                      "https://example.com/",
		"token":                    "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11",
	}

	created := dispatch(t, d, Request{Method: http.MethodPost, App: "testapp", Model: "megamodel", Payload: payload})
	require.Equal(t, http.StatusOK, created.Status)

	fetched := dispatch(t, d, Request{Method: http.MethodGet, App: "testapp", Model: "megamodel", ID: "1"})
	node := fetched.Body.(Node)

	for name, value := range payload {
		assert.Equal(t, value, node[name], name)
	}
	assert.Equal(t, "1", node["id"])
	assert.Equal(t, created.Body, fetched.Body)
}

func TestDispatcher_NullsRenderEmpty(t *testing.T) {
	d, s, _ := newDispatcher(t)

	resp := dispatch(t, d, Request{
		Method:  http.MethodPost,
		App:     "library",
		Model:   "book",
		Payload: map[string]string{"title": "Untitled"},
	})
	body := resp.Body.(Node)
	assert.Equal(t, Node{}, body["author"])
	assert.NotEmpty(t, body["created"])
	assert.Equal(t, 1, count(t, s, "library", "book"))
}
