package pocketbase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

func TestListSendsFilterAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/collections/lesson_progress/records", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "1", r.URL.Query().Get("perPage"))
		assert.Equal(t, `lesson = "L1" && user = "U1"`, r.URL.Query().Get("filter"))
		assert.Equal(t, "user-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"page": 1, "perPage": 1, "totalItems": 1, "totalPages": 1,
			"items": []map[string]any{{"id": "p1", "lesson": "L1", "user": "U1", "currentTime": 42}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second)
	ctx := recordstore.WithToken(context.Background(), "user-token")

	res, err := client.List(ctx, "lesson_progress", recordstore.ListOptions{
		Filter:  recordstore.Eq("lesson", "L1").And("user", "U1"),
		Page:    1,
		PerPage: 1,
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "p1", res.Items[0].ID())
	assert.Equal(t, 42.0, res.Items[0]["currentTime"])
}

func TestCreateAndUpdate(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		body, _ := io.ReadAll(r.Body)

		var fields map[string]any
		assert.NoError(t, json.Unmarshal(body, &fields))
		fields["id"] = "p1"
		_ = json.NewEncoder(w).Encode(fields)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	ctx := context.Background()

	created, err := client.Create(ctx, "lesson_progress", map[string]any{"lesson": "L1", "user": "U1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", created.ID())

	updated, err := client.Update(ctx, "lesson_progress", "p1", map[string]any{"completed": true})
	require.NoError(t, err)
	assert.Equal(t, true, updated["completed"])

	assert.Equal(t, []string{
		"POST /api/collections/lesson_progress/records",
		"PATCH /api/collections/lesson_progress/records/p1",
	}, methods)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unique violation", http.StatusBadRequest, `{"code":400,"message":"Failed to create record.","data":{"lesson":{"code":"validation_not_unique","message":"Value must be unique."}}}`, recordstore.ErrConflict},
		{"validation", http.StatusBadRequest, `{"code":400,"message":"Failed to create record.","data":{"currentTime":{"code":"validation_min_less_equal_than_required","message":"Must be larger than 0."}}}`, recordstore.ErrInvalid},
		{"forbidden", http.StatusForbidden, `{"code":403,"message":"Only the record owner can perform this action.","data":{}}`, recordstore.ErrUnauthorized},
		{"not found", http.StatusNotFound, `not json`, recordstore.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Create(context.Background(), "lesson_progress", map[string]any{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var remote *recordstore.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tc.status, remote.Status)
		})
	}
}

func TestAuthWithPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/collections/users/auth-with-password", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "jwt", "record": map[string]any{"id": "U1"}})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second).AuthWithPassword(context.Background(), "users", "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Equal(t, "U1", res.Record.ID())
}

func TestPingFailsOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	assert.Error(t, NewClient(srv.URL, time.Second).Ping(context.Background()))
}

func TestConfirmToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/collections/users/auth-refresh", r.URL.Path)
		if r.Header.Get("Authorization") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":401,"message":"The request requires valid record authorization token.","data":{}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "fresh", "record": map[string]any{"id": "U1"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)

	userID, err := client.ConfirmToken(context.Background(), "users", "good")
	require.NoError(t, err)
	assert.Equal(t, "U1", userID)

	_, err = client.ConfirmToken(context.Background(), "users", "forged")
	assert.ErrorIs(t, err, recordstore.ErrUnauthorized)
}
