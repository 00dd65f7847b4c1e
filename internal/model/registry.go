package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
)

// DefaultFiles maps each domain to its artifact file name.
var DefaultFiles = map[domain.Domain]string{
	domain.Heart:      "heart_disease_model.json",
	domain.Diabetes:   "diabetes_model.json",
	domain.Parkinsons: "parkinsons_model.json",
	domain.LungCancer: "lungs_disease_model.json",
	domain.Thyroid:    "Thyroid_model.json",
}

// Registry holds one handle per domain. It is populated once and never
// mutated afterwards, so lookups need no locking.
type Registry struct {
	handles map[domain.Domain]*Handle
}

// NewRegistry creates a registry from already built handles.
func NewRegistry(handles ...*Handle) (*Registry, error) {
	r := &Registry{handles: make(map[domain.Domain]*Handle, len(handles))}
	for _, h := range handles {
		if h == nil {
			return nil, errors.New("nil handle")
		}
		if !h.Domain().IsValid() {
			return nil, fmt.Errorf("%w: handle %s", domain.ErrUnknownDomain, h.Name())
		}
		if prev, ok := r.handles[h.Domain()]; ok {
			return nil, fmt.Errorf("domain %s has two models: %s and %s", h.Domain(), prev.Name(), h.Name())
		}
		r.handles[h.Domain()] = h
	}
	return r, nil
}

// ArtifactPath resolves the artifact file of d under dir. Entries in files
// override DefaultFiles.
func ArtifactPath(dir string, files map[string]string, d domain.Domain) string {
	name := DefaultFiles[d]
	if override, ok := files[string(d)]; ok && override != "" {
		name = override
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// LoadRegistry loads the artifact of every domain. Any missing or invalid
// artifact fails the whole load so that the process never serves with a
// partial registry.
func LoadRegistry(dir string, files map[string]string, opts BackendOptions) (*Registry, error) {
	handles := make([]*Handle, 0, len(domain.AllDomains))
	for _, d := range domain.AllDomains {
		path := ArtifactPath(dir, files, d)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s (%s)", domain.ErrMissingArtifact, d, path)
			}
			return nil, fmt.Errorf("stat artifact %s: %w", path, err)
		}

		a, err := LoadArtifact(path)
		if err != nil {
			return nil, err
		}
		if a.Domain != d {
			return nil, fmt.Errorf("artifact %s declares domain %s, expected %s", path, a.Domain, d)
		}

		h, err := HandleFromArtifact(a, opts)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
		if opts.Logger != nil {
			opts.Logger.WithFields(logrus.Fields{
				"domain":  d,
				"model":   h.Name(),
				"version": h.Version(),
				"backend": h.Kind(),
			}).Info("Model loaded")
		}
	}
	return NewRegistry(handles...)
}

// Lookup returns the handle for d.
func (r *Registry) Lookup(d domain.Domain) (*Handle, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, string(d))
	}
	h, ok := r.handles[d]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotLoaded, d)
	}
	return h, nil
}

// Handles returns the loaded handles in presentation order.
func (r *Registry) Handles() []*Handle {
	out := make([]*Handle, 0, len(r.handles))
	for _, d := range domain.AllDomains {
		if h, ok := r.handles[d]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Len returns the number of loaded handles.
func (r *Registry) Len() int {
	return len(r.handles)
}
