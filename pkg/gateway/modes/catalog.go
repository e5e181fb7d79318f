package modes

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Catalog is an immutable set of modes keyed by ID, in load order.
type Catalog struct {
	list []*Mode
	byID map[string]*Mode
}

type catalogFile struct {
	Modes []*Mode `yaml:"modes"`
}

// LoadCatalog parses the embedded built-in modes, then overlays one
// mode per *.yaml file found in dir. Overlay modes replace built-ins
// with the same ID and keep their position. An empty dir loads just
// the built-ins. Every loaded mode gets the shared visualization tools
// context appended to its system prompt.
func LoadCatalog(dir string) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(builtinCatalog, &cf); err != nil {
		return nil, fmt.Errorf("parsing built-in catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]*Mode)}
	for _, m := range cf.Modes {
		if err := c.add(m); err != nil {
			return nil, fmt.Errorf("built-in catalog: %w", err)
		}
	}

	if dir != "" {
		if err := c.loadDir(dir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading modes dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading mode file %s: %w", path, err)
		}
		var m Mode
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parsing mode file %s: %w", path, err)
		}
		if err := c.add(&m); err != nil {
			return fmt.Errorf("mode file %s: %w", path, err)
		}
	}
	return nil
}

func (c *Catalog) add(m *Mode) error {
	if m.ID == "" {
		return errors.New("mode missing id")
	}
	if m.Name == "" {
		return fmt.Errorf("mode %q missing name", m.ID)
	}
	m.SystemPrompt += toolsContext

	if old, ok := c.byID[m.ID]; ok {
		for i, existing := range c.list {
			if existing == old {
				c.list[i] = m
				break
			}
		}
	} else {
		c.list = append(c.list, m)
	}
	c.byID[m.ID] = m
	return nil
}

// Get returns the mode with the given ID.
func (c *Catalog) Get(id string) (*Mode, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// List returns the catalog modes in load order. The returned slice is
// a copy; the modes themselves are shared.
func (c *Catalog) List() []*Mode {
	out := make([]*Mode, len(c.list))
	copy(out, c.list)
	return out
}

// Len returns the number of modes in the catalog.
func (c *Catalog) Len() int {
	return len(c.list)
}
