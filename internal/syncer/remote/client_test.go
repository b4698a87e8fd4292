package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelectSendsWatermarkFilter(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products", r.URL.Path)
		gotQuery = r.URL.Query().Get("updated_at")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"p1","stock_quantity":12,"updated_at":"2026-01-02T03:04:05Z"}]`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := client.Select(context.Background(), "products", since)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "gt.2026-01-01T00:00:00Z", gotQuery)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, json.Number("12"), rows[0]["stock_quantity"])

	_, err = client.Select(context.Background(), "products", time.Time{})
	require.NoError(t, err)
	require.Empty(t, gotQuery)
}

func TestInsertUpsertsRows(t *testing.T) {
	var got []map[string]any
	var prefer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		prefer = r.Header.Get("Prefer")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, RatePerSecond: 50})
	require.NoError(t, err)
	err = client.Insert(context.Background(), "sales", []map[string]any{{"id": "s1"}, {"id": "s2"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Contains(t, prefer, "merge-duplicates")
}

func TestStatusErrorAndTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(200 * time.Millisecond)
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	err = client.Insert(context.Background(), "sales", []map[string]any{{"id": "s1"}})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadGateway, se.Code)
	require.Equal(t, "boom", se.Body)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Select(ctx, "slow", time.Time{})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = NewClient(Config{})
	require.Error(t, err)
}
