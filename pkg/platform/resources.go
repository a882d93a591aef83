// verge/pkg/platform/resources.go

package platform

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Versions is populated by GetService only.
	Versions []Version `json:"versions,omitempty"`
}

type Version struct {
	Number int  `json:"number"`
	Active bool `json:"active"`
	Locked bool `json:"locked"`
}

type ResourceLink struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ResourceID string `json:"resource_id"`
}

type ConfigStore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Domain struct {
	Name string `json:"name"`
}

// ListServices returns every service visible to the token.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var services []Service
	if err := c.get(ctx, "list services", "/service", &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) CreateService(ctx context.Context, name string) (*Service, error) {
	var svc Service
	form := url.Values{"name": {name}}
	if err := c.postForm(ctx, "create service", "/service", form, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// GetService returns one service with its version list.
func (c *Client) GetService(ctx context.Context, serviceID string) (*Service, error) {
	var svc Service
	if err := c.get(ctx, "get service", "/service/"+serviceID, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// ListVersions returns the versions of a service, oldest first.
func (c *Client) ListVersions(ctx context.Context, serviceID string) ([]Version, error) {
	var versions []Version
	path := fmt.Sprintf("/service/%s/version", serviceID)
	if err := c.get(ctx, "list versions", path, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// CloneVersion copies a version and returns the clone. Used when the
// source version is locked by a previous activation.
func (c *Client) CloneVersion(ctx context.Context, serviceID string, version int) (*Version, error) {
	var v Version
	path := fmt.Sprintf("/service/%s/version/%d/clone", serviceID, version)
	if err := c.do(ctx, "clone version", http.MethodPut, path, nil, "", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) ActivateVersion(ctx context.Context, serviceID string, version int) error {
	path := fmt.Sprintf("/service/%s/version/%d/activate", serviceID, version)
	return c.do(ctx, "activate version", http.MethodPut, path, nil, "", nil)
}

// ListResourceLinks returns the named resource links of a service
// version.
func (c *Client) ListResourceLinks(ctx context.Context, serviceID string, version int) ([]ResourceLink, error) {
	var links []ResourceLink
	path := fmt.Sprintf("/service/%s/version/%d/resource", serviceID, version)
	if err := c.get(ctx, "list resource links", path, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (c *Client) CreateResourceLink(ctx context.Context, serviceID string, version int, name, resourceID string) (*ResourceLink, error) {
	var link ResourceLink
	path := fmt.Sprintf("/service/%s/version/%d/resource", serviceID, version)
	form := url.Values{"name": {name}, "resource_id": {resourceID}}
	if err := c.postForm(ctx, "create resource link", path, form, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Client) DeleteResourceLink(ctx context.Context, serviceID string, version int, linkID string) error {
	path := fmt.Sprintf("/service/%s/version/%d/resource/%s", serviceID, version, linkID)
	return c.do(ctx, "delete resource link", http.MethodDelete, path, nil, "", nil)
}

// ListConfigStores returns the account's shared config stores.
func (c *Client) ListConfigStores(ctx context.Context) ([]ConfigStore, error) {
	var wrapper struct {
		Data []ConfigStore `json:"data"`
	}
	if err := c.get(ctx, "list config stores", "/resources/stores/config", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

func (c *Client) CreateConfigStore(ctx context.Context, name string) (*ConfigStore, error) {
	var store ConfigStore
	form := url.Values{"name": {name}}
	if err := c.postForm(ctx, "create config store", "/resources/stores/config", form, &store); err != nil {
		return nil, err
	}
	return &store, nil
}

// UpsertConfigItem writes a key/value pair into a config store with
// update-or-create semantics. The platform expects a form-encoded PUT
// with the value under item_value.
func (c *Client) UpsertConfigItem(ctx context.Context, storeID, key, value string) error {
	path := fmt.Sprintf("/resources/stores/config/%s/item/%s", storeID, url.PathEscape(key))
	form := url.Values{"item_value": {value}}
	return c.putForm(ctx, "upsert config item", path, form, nil)
}

func (c *Client) ListDomains(ctx context.Context, serviceID string, version int) ([]Domain, error) {
	var domains []Domain
	path := fmt.Sprintf("/service/%s/version/%d/domain", serviceID, version)
	if err := c.get(ctx, "list domains", path, &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

// UploadPackage uploads a gzip-compressed tar package to a service
// version as a multipart form with the archive under the "package"
// field.
func (c *Client) UploadPackage(ctx context.Context, serviceID string, version int, packageGz []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("package", "package.tar.gz")
	if err != nil {
		return fmt.Errorf("upload package: build form: %w", err)
	}
	if _, err := part.Write(packageGz); err != nil {
		return fmt.Errorf("upload package: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload package: build form: %w", err)
	}

	path := fmt.Sprintf("/service/%s/version/%d/package", serviceID, version)
	return c.do(ctx, "upload package", http.MethodPut, path, &body, mw.FormDataContentType(), nil)
}
