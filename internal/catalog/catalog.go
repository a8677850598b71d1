// Package catalog lists the models the server can generate chapters with.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
	"github.com/chaptermark/chaptermark-server/internal/validation"
)

// Model is one catalog entry.
type Model struct {
	ID          string `yaml:"id" json:"id" validate:"required,notblank,max=64"`
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description" json:"description"`
	Recommended bool   `yaml:"recommended" json:"recommended"`
	// Upstream is the model name sent to the inference backend. Defaults to ID.
	Upstream string `yaml:"upstream" json:"upstream,omitempty"`
}

type file struct {
	Default string  `yaml:"default"`
	Models  []Model `yaml:"models" validate:"required,min=1,dive"`
}

// Catalog is an immutable, ordered set of models.
type Catalog struct {
	models    []Model
	byID      map[string]Model
	defaultID string
}

// Builtin returns the stock catalog.
func Builtin() *Catalog {
	c, _ := build(file{
		Default: "asr-10k",
		Models: []Model{
			{ID: "asr-1k", Name: "ASR-1k", Description: "ASR-trained model (1k samples), fastest inference"},
			{ID: "asr-10k", Name: "ASR-10k", Description: "ASR-trained model (10k samples), balanced performance", Recommended: true},
			{ID: "captions_asr-1k", Name: "Captions+ASR-1k", Description: "Combined captions and ASR model (1k samples)"},
		},
	})
	return c
}

// Load reads a YAML catalog from path. A missing file yields Builtin.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Builtin(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "parse catalog")
	}
	if err := validation.New().Validate(f); err != nil {
		return nil, err
	}
	return build(f)
}

func build(f file) (*Catalog, error) {
	c := &Catalog{
		models: make([]Model, 0, len(f.Models)),
		byID:   make(map[string]Model, len(f.Models)),
	}

	for _, m := range f.Models {
		if _, dup := c.byID[m.ID]; dup {
			return nil, domainerrors.Validationf("duplicate model id %q", m.ID)
		}
		if m.Upstream == "" {
			m.Upstream = m.ID
		}
		c.models = append(c.models, m)
		c.byID[m.ID] = m
	}

	c.defaultID = f.Default
	if c.defaultID == "" {
		c.defaultID = c.models[0].ID
		for _, m := range c.models {
			if m.Recommended {
				c.defaultID = m.ID
				break
			}
		}
	}
	if _, ok := c.byID[c.defaultID]; !ok {
		return nil, domainerrors.Validationf("default model %q is not in the catalog", c.defaultID)
	}

	return c, nil
}

// Models returns the entries in file order.
func (c *Catalog) Models() []Model {
	return slices.Clone(c.models)
}

// Get returns the model with id.
func (c *Catalog) Get(id string) (Model, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Resolve returns id, or the default when id is empty. Unknown identifiers
// are a validation error.
func (c *Catalog) Resolve(id string) (Model, error) {
	if id == "" {
		id = c.defaultID
	}
	m, ok := c.byID[id]
	if !ok {
		return Model{}, domainerrors.Validationf("unknown model %q", id).
			WithDetails(map[string]string{"modelId": "must be one of the catalog models"})
	}
	return m, nil
}

// Default returns the default model identifier.
func (c *Catalog) Default() string {
	return c.defaultID
}

// Upstream maps a catalog identifier to its backend model name. Unknown
// identifiers map to "".
func (c *Catalog) Upstream(id string) string {
	return c.byID[id].Upstream
}

// WithDefault returns a copy whose default is id, which must exist.
func (c *Catalog) WithDefault(id string) (*Catalog, error) {
	if id == "" {
		return c, nil
	}
	if _, ok := c.byID[id]; !ok {
		return nil, domainerrors.Validationf("default model %q is not in the catalog", id)
	}
	cp := *c
	cp.defaultID = id
	return &cp, nil
}
