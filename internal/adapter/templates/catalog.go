package templates

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/neomorfeo/practiq/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// Compile-time check: Catalog implements domain.TemplateCatalog.
var _ domain.TemplateCatalog = (*Catalog)(nil)

type fileFormat struct {
	Templates []templateDoc `yaml:"templates"`
}

type templateDoc struct {
	ID      string    `yaml:"id"`
	Name    string    `yaml:"name"`
	Stage   string    `yaml:"stage"`
	Default bool      `yaml:"default"`
	Items   []itemDoc `yaml:"items"`
}

type itemDoc struct {
	Key              string `yaml:"key"`
	Title            string `yaml:"title"`
	Required         bool   `yaml:"required"`
	RequiresDocument bool   `yaml:"requiresDocument"`
	DependsOn        string `yaml:"dependsOn"`
}

// Catalog is an immutable set of validated checklist templates.
type Catalog struct {
	byID      map[string]domain.ChecklistTemplate
	defaults  map[domain.LifecycleStatus]string
	templates []string
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file. An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checklist templates: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog. Each stage may name at most one
// default template; a stage with a single template uses it as default.
func Parse(data []byte) (*Catalog, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding checklist templates: %w", err)
	}
	if len(doc.Templates) == 0 {
		return nil, fmt.Errorf("checklist catalog defines no templates")
	}

	c := &Catalog{
		byID:     make(map[string]domain.ChecklistTemplate, len(doc.Templates)),
		defaults: make(map[domain.LifecycleStatus]string),
	}
	perStage := make(map[domain.LifecycleStatus][]string)

	for _, td := range doc.Templates {
		t := domain.ChecklistTemplate{
			ID:    td.ID,
			Name:  td.Name,
			Stage: domain.LifecycleStatus(td.Stage),
		}
		for _, it := range td.Items {
			t.Items = append(t.Items, domain.TemplateItem{
				Key:              it.Key,
				Title:            it.Title,
				Required:         it.Required,
				RequiresDocument: it.RequiresDocument,
				DependsOn:        it.DependsOn,
			})
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate checklist template %q", t.ID)
		}

		c.byID[t.ID] = t
		c.templates = append(c.templates, t.ID)
		perStage[t.Stage] = append(perStage[t.Stage], t.ID)

		if td.Default {
			if prev, ok := c.defaults[t.Stage]; ok {
				return nil, fmt.Errorf("templates %q and %q are both default for %s", prev, t.ID, t.Stage)
			}
			c.defaults[t.Stage] = t.ID
		}
	}

	for stage, ids := range perStage {
		if _, ok := c.defaults[stage]; !ok && len(ids) == 1 {
			c.defaults[stage] = ids[0]
		}
	}
	sort.Strings(c.templates)

	return c, nil
}

// Get returns the template with the given id.
func (c *Catalog) Get(id string) (domain.ChecklistTemplate, error) {
	t, ok := c.byID[id]
	if !ok {
		return domain.ChecklistTemplate{}, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
	}
	return t, nil
}

// DefaultFor returns the default template of a stage.
func (c *Catalog) DefaultFor(stage domain.LifecycleStatus) (domain.ChecklistTemplate, error) {
	id, ok := c.defaults[stage]
	if !ok {
		return domain.ChecklistTemplate{}, fmt.Errorf("%w: no default for %s", domain.ErrTemplateNotFound, stage)
	}
	return c.byID[id], nil
}

// IDs returns the template identifiers in lexical order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.templates...)
}
