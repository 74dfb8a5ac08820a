package reactangosdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCRUDRequests(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/users/":
			io.WriteString(w, `[{"id":2,"name":"Bob","email":"b@x.com","favorite_food":null,"created_at":"2024-01-02T00:00:00Z","updated_at":"2024-01-02T00:00:00Z"}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/users/":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"name": "Alice", "email": "a@x.com"}, body)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"id":3,"name":"Alice","email":"a@x.com","favorite_food":null,"created_at":"2024-01-03T00:00:00Z","updated_at":"2024-01-03T00:00:00Z"}`)
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/users/3/":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"favorite_food": "soup"}, body)
			io.WriteString(w, `{"id":3,"name":"Alice","email":"a@x.com","favorite_food":"soup","created_at":"2024-01-03T00:00:00Z","updated_at":"2024-01-04T00:00:00Z"}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/users/3/":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/v1/")
	ctx := context.Background()

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Bob", users[0].Name)
	assert.Nil(t, users[0].FavoriteFood)
	assert.Equal(t, 2024, users[0].CreatedAt.Year())

	created, err := c.CreateUser(ctx, CreateUserInput{Name: "Alice", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)

	food := "soup"
	updated, err := c.UpdateUser(ctx, 3, UpdateUserInput{FavoriteFood: &food})
	require.NoError(t, err)
	require.NotNil(t, updated.FavoriteFood)
	assert.Equal(t, "soup", *updated.FavoriteFood)

	require.NoError(t, c.DeleteUser(ctx, 3))
	assert.Equal(t, []string{
		"GET /api/v1/users/",
		"POST /api/v1/users/",
		"PUT /api/v1/users/3/",
		"DELETE /api/v1/users/3/",
	}, seen)
}

func TestClientRequestOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "user.created", r.URL.Query().Get("type"))
		assert.Equal(t, "fixed-id", r.Header.Get(RequestIDHeader))
		io.WriteString(w, `{"items":[{"id":1,"type":"user.created","entity_kind":"user","payload":{}}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	var out struct {
		Items []Event `json:"items"`
	}
	err := c.Get(context.Background(), "/events", RequestOptions{
		Header: http.Header{RequestIDHeader: []string{"fixed-id"}},
		Query:  map[string][]string{"limit": {"5"}, "type": {"user.created"}},
	}, &out)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
}

func TestClientErrorNormalization(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
	}{
		{"envelope", 409, `{"error":{"code":"conflict","message":"email already exists: a@x.com"}}`, "conflict", "email already exists: a@x.com"},
		{"detail", 404, `{"detail":"Not found."}`, "", "Not found."},
		{"message", 400, `{"message":"bad input"}`, "", "bad input"},
		{"field map", 400, `{"email":["user with this email already exists."],"name":["required"]}`, "", "email: user with this email already exists.; name: required"},
		{"generic", 502, `<html>bad gateway</html>`, "", "request failed with status 502"},
		{"empty", 500, ``, "", "request failed with status 500"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL).GetUser(context.Background(), 1)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, KindStatus, apiErr.Kind)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.code, apiErr.Code)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.message, err.Error())
		})
	}
}

func TestClientTransportAndDecodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"not-a-number"}`)
	}))
	_, err := New(srv.URL).GetUser(context.Background(), 1)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindDecode, apiErr.Kind)
	srv.Close()

	_, err = New(srv.URL).ListUsers(context.Background())
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.Zero(t, apiErr.StatusCode)
}
