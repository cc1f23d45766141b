package badges

import (
	"fmt"
	"os"

	"studyquiz/internal/domain"
	"gopkg.in/yaml.v3"
)

// Criteria describes when a badge qualifies. Zero-valued fields are absent
// and never evaluated; any present field being satisfied is enough.
type Criteria struct {
	QuizzesCompleted int    `yaml:"quizzesCompleted,omitempty" json:"quizzesCompleted,omitempty"`
	Subject          string `yaml:"subject,omitempty" json:"subject,omitempty"`
	Count            int    `yaml:"count,omitempty" json:"count,omitempty"`
	MinPercentage    int    `yaml:"minPercentage,omitempty" json:"minPercentage,omitempty"`
	UniqueQuizzes    int    `yaml:"uniqueQuizzes,omitempty" json:"uniqueQuizzes,omitempty"`
	UniqueDays       int    `yaml:"uniqueDays,omitempty" json:"uniqueDays,omitempty"`
	AfterHour        int    `yaml:"afterHour,omitempty" json:"afterHour,omitempty"`
}

// Definition is one catalog entry.
type Definition struct {
	ID          domain.BadgeID `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Icon        string         `yaml:"icon" json:"icon"`
	Description string         `yaml:"description" json:"description"`
	Criteria    Criteria       `yaml:"criteria" json:"criteria"`
}

// Catalog is an immutable, versioned set of badge definitions.
type Catalog struct {
	version string
	defs    []Definition
	index   map[domain.BadgeID]int
}

// NewCatalog copies defs and rejects duplicate ids.
func NewCatalog(version string, defs []Definition) (Catalog, error) {
	c := Catalog{
		version: version,
		defs:    make([]Definition, len(defs)),
		index:   make(map[domain.BadgeID]int, len(defs)),
	}
	copy(c.defs, defs)
	for i, d := range c.defs {
		if _, dup := c.index[d.ID]; dup {
			return Catalog{}, fmt.Errorf("badge catalog %s: duplicate badge id %d", version, d.ID)
		}
		c.index[d.ID] = i
	}
	return c, nil
}

// Version identifies the catalog revision.
func (c Catalog) Version() string { return c.version }

// Len returns the number of definitions.
func (c Catalog) Len() int { return len(c.defs) }

// Definitions returns a copy of the definitions in catalog order.
func (c Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Lookup finds a definition by id.
func (c Catalog) Lookup(id domain.BadgeID) (Definition, bool) {
	i, ok := c.index[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Names maps badge ids to display names.
func (c Catalog) Names() map[domain.BadgeID]string {
	names := make(map[domain.BadgeID]string, len(c.defs))
	for _, d := range c.defs {
		names[d.ID] = d.Name
	}
	return names
}

// DefaultCatalog is the built-in badge set.
func DefaultCatalog() Catalog {
	c, _ := NewCatalog("2024.1", []Definition{
		{ID: 1, Name: "First Quiz", Icon: "🎉", Description: "Complete your very first quiz.", Criteria: Criteria{QuizzesCompleted: 1}},
		{ID: 2, Name: "History Buff", Icon: "📜", Description: "Complete 3 History quizzes.", Criteria: Criteria{Subject: "History", Count: 3}},
		{ID: 3, Name: "Geography Expert", Icon: "🌍", Description: "Score 80%+ in a Geography quiz.", Criteria: Criteria{Subject: "Geography", MinPercentage: 80}},
		{ID: 4, Name: "Quick Learner", Icon: "⚡", Description: "Complete any quiz with a score of 90% or higher.", Criteria: Criteria{MinPercentage: 90}},
		{ID: 5, Name: "Consistent Scholar", Icon: "🗓️", Description: "Complete a quiz on 3 different days.", Criteria: Criteria{UniqueDays: 3}},
		{ID: 6, Name: "Quiz Master", Icon: "👑", Description: "Complete 10 unique quizzes.", Criteria: Criteria{UniqueQuizzes: 10}},
		{ID: 7, Name: "Top Performer", Icon: "🏆", Description: "Achieve a perfect score (100%) in any quiz.", Criteria: Criteria{MinPercentage: 100}},
		{ID: 8, Name: "Night Owl", Icon: "🦉", Description: "Complete a quiz after 10 PM.", Criteria: Criteria{AfterHour: 22}},
	})
	return c
}

type catalogFile struct {
	Version string       `yaml:"version"`
	Badges  []Definition `yaml:"badges"`
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse badge catalog: %w", err)
	}
	if len(file.Badges) == 0 {
		return Catalog{}, fmt.Errorf("badge catalog %s has no badges", path)
	}
	return NewCatalog(file.Version, file.Badges)
}
