// Package catalog holds the process-wide data catalog: the metadata for
// every variable the system can carry, the storage structures that type
// their values, and the loaders that populate the catalog from YAML
// definition documents.
package catalog

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Metadata describes one catalog variable. Identifier and structure are
// mandatory; the rest annotate the variable for presentation and
// filtering.
type Metadata struct {
	// Identifier is the unique variable identifier, e.g.
	// "device.system_type".
	Identifier string `yaml:"identifier" json:"identifier" validate:"required"`

	// Structure names the storage structure class used to type values.
	Structure string `yaml:"structure" json:"structure" validate:"required"`

	// Title is the human-readable variable name.
	Title string `yaml:"title" json:"title"`

	// Description is optional free text.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Units per value dimension, if any.
	Units []string `yaml:"units,omitempty" json:"units,omitempty"`

	// Labels per value dimension, if any.
	Labels []string `yaml:"labels,omitempty" json:"labels,omitempty"`

	// Types constrains the value kinds accepted by the structure.
	Types []string `yaml:"types,omitempty" json:"types,omitempty"`

	// ValidValues restricts the accepted values, if set.
	ValidValues []string `yaml:"valid_values,omitempty" json:"valid_values,omitempty"`

	// Group collects related variables, e.g. a module name.
	Group string `yaml:"group,omitempty" json:"group,omitempty"`

	// Tags are free-form filter keys.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Copy returns an independent copy of the metadata.
func (m *Metadata) Copy() *Metadata {
	out := *m
	out.Units = append([]string(nil), m.Units...)
	out.Labels = append([]string(nil), m.Labels...)
	out.Types = append([]string(nil), m.Types...)
	out.ValidValues = append([]string(nil), m.ValidValues...)
	out.Tags = append([]string(nil), m.Tags...)
	return &out
}

// DataCatalog maps variable identifiers to metadata. It is populated once
// at startup from plugin-declared definition documents and read-only
// afterwards; every write into a data state validates its identifier here
// first.
type DataCatalog struct {
	order     []string
	variables map[string]*Metadata
	validate  *validator.Validate
}

// NewDataCatalog creates an empty catalog.
func NewDataCatalog() *DataCatalog {
	return &DataCatalog{
		variables: make(map[string]*Metadata),
		validate:  validator.New(),
	}
}

// AddMetadata adds one variable definition, validating its required
// fields. A duplicate identifier replaces the previous definition.
func (c *DataCatalog) AddMetadata(meta *Metadata) error {
	if err := c.validate.Struct(meta); err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	if _, ok := c.variables[meta.Identifier]; !ok {
		c.order = append(c.order, meta.Identifier)
	}
	c.variables[meta.Identifier] = meta.Copy()

	return nil
}

// VariableIdentifiers returns the identifiers in definition order.
func (c *DataCatalog) VariableIdentifiers() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// HasVariable reports whether an identifier is defined.
func (c *DataCatalog) HasVariable(identifier string) bool {
	_, ok := c.variables[identifier]
	return ok
}

// GetMetadata returns a copy of the metadata for an identifier.
func (c *DataCatalog) GetMetadata(identifier string) (*Metadata, error) {
	meta, ok := c.variables[identifier]
	if !ok {
		return nil, fmt.Errorf(
			"metadata for variable %s not found in the data catalog", identifier)
	}
	return meta.Copy(), nil
}

// FilterByGroup returns the identifiers in a group, in definition order.
func (c *DataCatalog) FilterByGroup(group string) []string {
	var out []string
	for _, id := range c.order {
		if c.variables[id].Group == group {
			out = append(out, id)
		}
	}
	return out
}

// FilterByTag returns the identifiers carrying a tag, in definition
// order.
func (c *DataCatalog) FilterByTag(tag string) []string {
	var out []string
	for _, id := range c.order {
		for _, candidate := range c.variables[id].Tags {
			if candidate == tag {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// Len returns the number of defined variables.
func (c *DataCatalog) Len() int {
	return len(c.variables)
}
