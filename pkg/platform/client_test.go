// verge/pkg/platform/client_test.go

package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-token")
	c.BaseURL = srv.URL
	return c
}

func TestAuthHeaderOnEveryRequest(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Fastly-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		json.NewEncoder(w).Encode([]Service{{ID: "svc1", Name: "prod"}})
	})

	services, err := c.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "svc1", services[0].ID)
}

func TestCreateServiceForm(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/service", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "edge-rules", r.PostForm.Get("name"))
		json.NewEncoder(w).Encode(Service{ID: "new", Name: "edge-rules"})
	})

	svc, err := c.CreateService(context.Background(), "edge-rules")
	require.NoError(t, err)
	assert.Equal(t, "new", svc.ID)
}

func TestCloneAndActivateVersion(t *testing.T) {
	var paths []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(Version{Number: 4})
	})

	v, err := c.CloneVersion(context.Background(), "svc1", 3)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Number)

	require.NoError(t, c.ActivateVersion(context.Background(), "svc1", 4))
	assert.Equal(t, []string{"/service/svc1/version/3/clone", "/service/svc1/version/4/activate"}, paths)
}

func TestListConfigStoresUnwrapsData(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resources/stores/config", r.URL.Path)
		io.WriteString(w, `{"data":[{"id":"cs1","name":"security_rules"}],"meta":{}}`)
	})

	stores, err := c.ListConfigStores(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "cs1", stores[0].ID)
}

func TestUpsertConfigItem(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/resources/stores/config/cs1/item/svc%2F1", r.URL.EscapedPath())
		require.NoError(t, r.ParseForm())
		assert.Equal(t, `{"version":"1.0.0"}`, r.PostForm.Get("item_value"))
	})

	err := c.UpsertConfigItem(context.Background(), "cs1", "svc/1", `{"version":"1.0.0"}`)
	assert.NoError(t, err)
}

func TestResourceLinkLifecycle(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]ResourceLink{{ID: "l1", Name: "security_rules", ResourceID: "cs1"}})
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "security_rules", r.PostForm.Get("name"))
			assert.Equal(t, "cs2", r.PostForm.Get("resource_id"))
			json.NewEncoder(w).Encode(ResourceLink{ID: "l2", Name: "security_rules", ResourceID: "cs2"})
		case http.MethodDelete:
			assert.Equal(t, "/service/svc1/version/2/resource/l1", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}
	})

	ctx := context.Background()
	links, err := c.ListResourceLinks(ctx, "svc1", 2)
	require.NoError(t, err)
	require.Len(t, links, 1)

	require.NoError(t, c.DeleteResourceLink(ctx, "svc1", 2, "l1"))

	link, err := c.CreateResourceLink(ctx, "svc1", 2, "security_rules", "cs2")
	require.NoError(t, err)
	assert.Equal(t, "l2", link.ID)
}

func TestUploadPackageMultipart(t *testing.T) {
	payload := []byte("gzip-bytes")
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/service/svc1/version/5/package", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("package")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "package.tar.gz", header.Filename)

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, payload, content)
	})

	err := c.UploadPackage(context.Background(), "svc1", 5, payload)
	assert.NoError(t, err)
}

func TestAPIErrorSurfacesStatusAndBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"msg":"Duplicate record"}`)
	})

	_, err := c.CreateConfigStore(context.Background(), "security_rules")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.True(t, apiErr.Conflict())
	assert.Equal(t, 409, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "Duplicate record")
	assert.Contains(t, apiErr.Error(), "create config store")
}

func TestGetServiceIncludesVersions(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/service/svc1", r.URL.Path)
		io.WriteString(w, `{"id":"svc1","name":"prod","versions":[{"number":1,"active":false},{"number":2,"active":true}]}`)
	})

	svc, err := c.GetService(context.Background(), "svc1")
	require.NoError(t, err)
	assert.Equal(t, "prod", svc.Name)
	require.Len(t, svc.Versions, 2)
	assert.True(t, svc.Versions[1].Active)
}

func TestListDomains(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/service/svc1/version/7/domain", r.URL.Path)
		json.NewEncoder(w).Encode([]Domain{{Name: "example.edgecompute.app"}})
	})

	domains, err := c.ListDomains(context.Background(), "svc1", 7)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "example.edgecompute.app", domains[0].Name)
}
