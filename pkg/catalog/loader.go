package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Variable definition documents are YAML files holding a list of metadata
// entries. Each entry is checked against a CUE schema before the struct
// validation in DataCatalog.AddMetadata runs.
const definitionSchema = `
// Variable definition schema
#Variable: {
	// identifier is the unique variable identifier
	identifier: string & =~"^[a-z0-9_.]+$"

	// structure names the storage structure class
	structure: string & =~"^[A-Za-z0-9]+$"

	// title is the human-readable variable name
	title?: string

	// description is optional free text
	description?: string

	// units per value dimension
	units?: [...string]

	// labels per value dimension
	labels?: [...string]

	// types constrains accepted value kinds
	types?: [..."int" | "float" | "str" | "bool"]

	// valid_values restricts accepted values
	valid_values?: [...string]

	// group collects related variables
	group?: string

	// tags are free-form filter keys
	tags?: [...string]
}
`

// Loader reads variable definition documents into a catalog.
type Loader struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewLoader creates a loader with the definition schema compiled.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(definitionSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling definition schema: %w", err)
	}

	return &Loader{
		ctx:    ctx,
		schema: schema.LookupPath(cue.ParsePath("#Variable")),
	}, nil
}

// LoadFile reads one YAML definition file into the catalog.
func (l *Loader) LoadFile(c *DataCatalog, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading definition file %s: %w", path, err)
	}

	var entries []map[string]any
	if err := yaml.Unmarshal(content, &entries); err != nil {
		return fmt.Errorf("parsing definition file %s: %w", path, err)
	}

	for i, entry := range entries {
		if err := l.validateEntry(entry); err != nil {
			return fmt.Errorf("definition %d in %s: %w", i, path, err)
		}

		meta, err := decodeMetadata(entry)
		if err != nil {
			return fmt.Errorf("definition %d in %s: %w", i, path, err)
		}

		if err := c.AddMetadata(meta); err != nil {
			return fmt.Errorf("definition %d in %s: %w", i, path, err)
		}
	}

	return nil
}

// LoadDirectory reads every .yaml and .yml file under a directory into
// the catalog, in lexical order.
func (l *Loader) LoadDirectory(c *DataCatalog, dir string) error {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking definition directory %s: %w", dir, err)
	}

	for _, path := range files {
		if err := l.LoadFile(c, path); err != nil {
			return err
		}
	}

	return nil
}

// LoadDirectories reads every definition directory in order.
func (l *Loader) LoadDirectories(c *DataCatalog, dirs []string) error {
	for _, dir := range dirs {
		if err := l.LoadDirectory(c, dir); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) validateEntry(entry map[string]any) error {
	dataVal := l.ctx.Encode(entry)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("encoding definition: %w", err)
	}

	unified := l.schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

func decodeMetadata(entry map[string]any) (*Metadata, error) {
	// Round-trip through YAML to reuse the struct tags.
	raw, err := yaml.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("re-encoding definition: %w", err)
	}

	var meta Metadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decoding definition: %w", err)
	}

	return &meta, nil
}
