package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/errs"
)

func TestDatasetsPagesAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/datasets/", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "cats", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte(`{"items":[{"id":3,"name":"pets","description":null,"tags":["cat"],"created_by":1,"created_at":"2025-01-01T00:00:00","image_count":12}],"total":11,"page":2,"limit":10,"pages":2}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Datasets(context.Background(), PageQuery{})
	assert.True(t, errs.IsKind(err, errs.KindAuth))

	got, err := c.WithToken("tok").Datasets(context.Background(), PageQuery{Page: 2, Limit: 10, Search: "cats"})
	require.NoError(t, err)
	assert.Equal(t, 11, got.Total)
	assert.Equal(t, 2, got.Pages)
	require.Len(t, got.Items, 1)
	assert.Equal(t, Dataset{ID: 3, Name: "pets", Tags: []string{"cat"}, CreatedBy: 1, CreatedAt: "2025-01-01T00:00:00", ImageCount: 12}, got.Items[0])
}

func TestCategoriesOmitsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/categories/", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"items":[{"id":1,"name":"cat","dictionary_id":null,"created_at":"2025-01-01T00:00:00"}],"total":1,"page":1,"limit":25,"pages":1}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).Categories(context.Background(), PageQuery{})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "cat", got.Items[0].Name)
	assert.Zero(t, got.Items[0].DictionaryID)
}

func TestAnnotationsFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/annotations/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "42", q.Get("image_id"))
		assert.Equal(t, "approved", q.Get("status"))
		assert.False(t, q.Has("category_id"))
		assert.False(t, q.Has("source_type"))
		_, _ = w.Write([]byte(`{"items":[{"id":9,"image_id":42,"category_id":null,"bbox":[1,2,30.5,40],"area":1220,"status":"approved","source_type":"auto","created_at":"t0","updated_at":"t1","predicted_iou":0.91}],"total":1,"page":1,"limit":25,"pages":1}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).Annotations(context.Background(), AnnotationQuery{ImageID: 42, Status: "approved"})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	a := got.Items[0]
	assert.Equal(t, [4]float64{1, 2, 30.5, 40}, a.BBox)
	assert.Equal(t, "auto", a.SourceType)
	require.NotNil(t, a.PredictedIoU)
	assert.InDelta(t, 0.91, *a.PredictedIoU, 1e-9)
	assert.Nil(t, a.StabilityScore)
}

func TestLeaderboardIsPublic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rewards/leaderboard", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.False(t, r.URL.Query().Has("search"))
		_, _ = w.Write([]byte(`{"entries":[{"user_id":4,"display_name":null,"email":"x@y.z","total_points":150,"total_contributions":12,"rank":1}],"total_users":1,"page":1,"size":5,"pages":1}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).Leaderboard(context.Background(), PageQuery{Page: 1, Limit: 5, Search: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalUsers)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, LeaderboardEntry{UserID: 4, Email: "x@y.z", TotalPoints: 150, TotalContributions: 12, Rank: 1}, got.Entries[0])
}

func TestListErrorsCarryDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"limit must be <= 100"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Categories(context.Background(), PageQuery{Limit: 500})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTransport))
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusUnprocessableEntity, herr.Status)
	assert.Equal(t, "limit must be <= 100", herr.Detail)
}
