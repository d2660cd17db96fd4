// Package presenter renders known entities (posts, history entries, cache
// reports) from declarative YAML schemas. It sits between commands and the
// generic output renderer, which it falls back to for anything it does not
// recognize.
package presenter

// EntitySchema describes how an entity wants to be presented.
type EntitySchema struct {
	Entity   string                  `yaml:"entity"`
	Kind     string                  `yaml:"kind"`
	Identity Identity                `yaml:"identity"`
	Headline map[string]HeadlineSpec `yaml:"headline"`
	Fields   map[string]FieldSpec    `yaml:"fields"`
	Views    ViewSpecs               `yaml:"views"`
	Actions  []Affordance            `yaml:"affordances"`
}

// Identity names the entity's label and ID fields.
type Identity struct {
	Label string `yaml:"label"`
	ID    string `yaml:"id"`
}

// HeadlineSpec is a headline template.
type HeadlineSpec struct {
	Template string `yaml:"template"`
}

// FieldSpec describes how a single field should be presented.
type FieldSpec struct {
	Role     string            `yaml:"role"`
	Emphasis string            `yaml:"emphasis"`
	Format   string            `yaml:"format"`
	Collapse bool              `yaml:"collapse"`
	Labels   map[string]string `yaml:"labels"`
}

// ViewSpecs declares which fields appear per presentation context.
type ViewSpecs struct {
	List   ListView   `yaml:"list"`
	Detail DetailView `yaml:"detail"`
}

// ListView configures the list presentation.
type ListView struct {
	Columns []string `yaml:"columns"`
}

// DetailView configures the single-entity presentation.
type DetailView struct {
	Sections []DetailSection `yaml:"sections"`
}

// DetailSection groups fields under an optional heading.
type DetailSection struct {
	Heading string   `yaml:"heading"`
	Fields  []string `yaml:"fields"`
}

// Affordance is a templated CLI action the user can take next.
type Affordance struct {
	Action string `yaml:"action"`
	Cmd    string `yaml:"cmd"`
	Label  string `yaml:"label"`
	When   string `yaml:"when"`
}
