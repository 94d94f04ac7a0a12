package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/masteryquest/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// StageDef declares one mastery stage.
type StageDef struct {
	ID          models.StageID `yaml:"id" json:"id"`
	Requires    models.StageID `yaml:"requires,omitempty" json:"requires,omitempty"`
	BaseXP      int            `yaml:"base_xp" json:"base_xp"`
	MinDuration time.Duration  `yaml:"min_duration" json:"min_duration"`
}

// Catalog is the ordered set of stages a material moves through.
type Catalog struct {
	stages []StageDef
	byID   map[models.StageID]StageDef
}

type catalogFile struct {
	Stages []StageDef `yaml:"stages"`
}

// DefaultStages is the built-in progression used when no catalog file is
// configured.
func DefaultStages() []StageDef {
	return []StageDef{
		{ID: "remember", BaseXP: 10, MinDuration: 5 * time.Second},
		{ID: "understand", BaseXP: 15, MinDuration: 8 * time.Second},
		{ID: "apply", BaseXP: 20, MinDuration: 10 * time.Second},
		{ID: "analyze", BaseXP: 25, MinDuration: 12 * time.Second},
		{ID: "evaluate", BaseXP: 30, MinDuration: 15 * time.Second},
		{ID: "create", BaseXP: 40, MinDuration: 20 * time.Second},
	}
}

// DefaultCatalog returns the catalog built from DefaultStages.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultStages())
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog validates defs and builds a catalog. A stage without an
// explicit Requires depends on the stage listed before it; the first stage
// has no prerequisite.
func NewCatalog(defs []StageDef) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog has no stages")
	}
	c := &Catalog{
		stages: make([]StageDef, 0, len(defs)),
		byID:   make(map[models.StageID]StageDef, len(defs)),
	}
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("stage %d: empty id", i+1)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("stage %q: duplicate id", d.ID)
		}
		if d.BaseXP <= 0 {
			return nil, fmt.Errorf("stage %q: base_xp must be positive", d.ID)
		}
		if d.MinDuration < 0 {
			return nil, fmt.Errorf("stage %q: negative min_duration", d.ID)
		}
		if d.Requires == "" && i > 0 {
			d.Requires = defs[i-1].ID
		}
		if d.Requires != "" {
			if _, ok := c.byID[d.Requires]; !ok {
				return nil, fmt.Errorf("stage %q: prerequisite %q must be declared earlier", d.ID, d.Requires)
			}
		}
		c.stages = append(c.stages, d)
		c.byID[d.ID] = d
	}
	return c, nil
}

// LoadCatalog reads a YAML stage list from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stage catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing stage catalog: %w", err)
	}
	return NewCatalog(f.Stages)
}

// Stage looks up a stage by id.
func (c *Catalog) Stage(id models.StageID) (StageDef, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Stages returns the stages in progression order.
func (c *Catalog) Stages() []StageDef {
	out := make([]StageDef, len(c.stages))
	copy(out, c.stages)
	return out
}

// Index returns the position of a stage in the progression, or -1.
func (c *Catalog) Index(id models.StageID) int {
	for i, d := range c.stages {
		if d.ID == id {
			return i
		}
	}
	return -1
}
