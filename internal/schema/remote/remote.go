// Package remote loads a dataset schema from the remote dataset service's
// view endpoint, GET https://<domain>/api/views/<id>.json.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"datasync/internal/datasource/httpds"
	"datasync/internal/schema"
)

// Version is sent in the X-Socrata-DataSync-Version header.
var Version = "1.0"

func init() {
	schema.Register("remote", func(_ context.Context, cfg schema.Config) (schema.Provider, error) {
		return NewProvider(cfg, httpds.Config{MaxRetries: 3})
	})
}

// Provider fetches one dataset view.
type Provider struct {
	client    *httpds.Client
	baseURL   string
	datasetID string
	appToken  string
}

// NewProvider builds a provider for cfg.Domain and cfg.DatasetID. Domain is a
// bare host ("data.example.gov") or a full base URL; a bare host gets https.
// cfg.Username and cfg.Password, when set, override those in hc.
func NewProvider(cfg schema.Config, hc httpds.Config) (*Provider, error) {
	domain := strings.TrimRight(strings.TrimSpace(cfg.Domain), "/")
	if domain == "" {
		return nil, errors.New("schema/remote: domain must not be empty")
	}
	if strings.TrimSpace(cfg.DatasetID) == "" {
		return nil, errors.New("schema/remote: dataset id must not be empty")
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	if cfg.Username != "" {
		hc.Username, hc.Password = cfg.Username, cfg.Password
	}
	return &Provider{
		client:    httpds.NewClient(hc),
		baseURL:   domain,
		datasetID: cfg.DatasetID,
		appToken:  cfg.AppToken,
	}, nil
}

// ViewURL is the endpoint the provider reads.
func (p *Provider) ViewURL() string {
	return p.baseURL + "/api/views/" + url.PathEscape(p.datasetID) + ".json"
}

// Dataset implements schema.Provider. System columns are dropped and fields
// without a display name get one derived from the field name.
func (p *Provider) Dataset(ctx context.Context) (schema.Dataset, error) {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("User-Agent", "datasync")
	h.Set("X-Socrata-DataSync-Version", Version)
	if p.appToken != "" {
		h.Set("X-App-Token", p.appToken)
	}

	var ds schema.Dataset
	if err := p.client.GetJSON(ctx, p.ViewURL(), h, &ds); err != nil {
		var se *httpds.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return schema.Dataset{}, fmt.Errorf("schema/remote: dataset %s not found at %s", p.datasetID, p.baseURL)
		}
		return schema.Dataset{}, fmt.Errorf("schema/remote: %w", err)
	}
	if ds.ID == "" {
		ds.ID = p.datasetID
	}
	ds.Fields = schema.UserFields(ds.Fields)
	for i, f := range ds.Fields {
		if f.HumanName == "" {
			ds.Fields[i].HumanName = schema.Humanize(f.FieldName)
		}
	}
	return ds, nil
}
