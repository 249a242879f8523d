// Package file loads a dataset schema from a local view file. JSON and YAML
// are both accepted; the document has the same shape the remote dataset
// service returns ({"id", "name", "columns": [{"fieldName", "name",
// "dataTypeName"}]}).
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"datasync/internal/schema"
)

func init() {
	schema.Register("file", func(_ context.Context, cfg schema.Config) (schema.Provider, error) {
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, fmt.Errorf("schema/file: path must not be empty")
		}
		return Provider{Path: cfg.Path}, nil
	})
}

// Provider reads the view file at Path on every call.
type Provider struct {
	Path string
}

// Dataset implements schema.Provider.
func (p Provider) Dataset(ctx context.Context) (schema.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return schema.Dataset{}, err
	}
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("schema/file: %w", err)
	}
	return Parse(b, filepath.Ext(p.Path))
}

// Parse decodes a view document. ext selects the decoder: ".yaml" and
// ".yml" use YAML, anything else JSON.
func Parse(b []byte, ext string) (schema.Dataset, error) {
	var ds schema.Dataset
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &ds); err != nil {
			return schema.Dataset{}, fmt.Errorf("schema/file: decode yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		if err := dec.Decode(&ds); err != nil {
			return schema.Dataset{}, fmt.Errorf("schema/file: decode json: %w", err)
		}
	}
	ds.Fields = schema.UserFields(ds.Fields)
	for i, f := range ds.Fields {
		if f.HumanName == "" {
			ds.Fields[i].HumanName = schema.Humanize(f.FieldName)
		}
	}
	return ds, nil
}
