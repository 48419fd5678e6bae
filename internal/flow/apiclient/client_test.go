package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/railzwaylabs/plexsource/internal/backend"
	"github.com/railzwaylabs/plexsource/internal/config"
	"github.com/railzwaylabs/plexsource/internal/flow/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, handler http.HandlerFunc) domain.Repository {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b, err := backend.New(config.BackendConfig{URL: srv.URL}, zap.NewNop(), backend.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return New(b)
}

func TestListFollowsPages(t *testing.T) {
	var pages []string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/flows/instances/", r.URL.Path)
		assert.Equal(t, "pk", r.URL.Query().Get("ordering"))
		assert.Equal(t, "authentication", r.URL.Query().Get("designation"))
		pages = append(pages, r.URL.Query().Get("page"))

		if r.URL.Query().Get("page") == "" {
			_, _ = w.Write([]byte(`{"pagination":{"next":2},"results":[{"pk":"a","slug":"one","name":"One","designation":"authentication"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"pagination":{"next":0},"results":[{"pk":"b","slug":"default-source-authentication","name":"Two","designation":"authentication"}]}`))
	})

	flows, err := c.List(context.Background(), domain.DesignationAuthentication)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "2"}, pages)
	require.Len(t, flows, 2)
	assert.Equal(t, domain.Flow{PK: "b", Slug: "default-source-authentication", Name: "Two", Designation: domain.DesignationAuthentication}, flows[1])
}

func TestListStatusError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.List(context.Background(), domain.DesignationEnrollment)
	assert.Error(t, err)
}
