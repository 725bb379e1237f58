// Package schema loads page configuration files, normalizes the models
// layout into the flat form, validates the result, and serves lookups from
// an atomically swappable registry.
package schema

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// Loader scans directories for page configuration files. Both YAML and JSON
// files are accepted; each file holds one page.
type Loader struct {
	validator *Validator
}

// NewLoader creates a Loader. A nil validator skips structural validation.
func NewLoader(validator *Validator) *Loader {
	return &Loader{validator: validator}
}

// LoadAll recursively scans directories for page files and returns the
// normalized pages.
func (l *Loader) LoadAll(directories []string) ([]model.PageConfig, error) {
	var pages []model.PageConfig

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				return nil
			}

			page, err := l.LoadFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			pages = append(pages, page)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	return pages, nil
}

// LoadFile parses, validates, and normalizes a single page file. The SHA-256
// checksum of the raw bytes and the source path are recorded on the page.
func (l *Loader) LoadFile(path string) (model.PageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.PageConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var page model.PageConfig
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &page)
	} else {
		err = yaml.Unmarshal(data, &page)
	}
	if err != nil {
		return model.PageConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if l.validator != nil {
		if err := l.validator.Validate(&page); err != nil {
			return model.PageConfig{}, fmt.Errorf("validating %s: %w", path, err)
		}
	}
	if err := Normalize(&page); err != nil {
		return model.PageConfig{}, fmt.Errorf("normalizing %s: %w", path, err)
	}

	page.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
	page.SourceFile = path
	return page, nil
}
