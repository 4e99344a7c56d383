package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a set of type declarations:
//
//	types:
//	  - name: Board
//	    sheet: Board
//	    fields:
//	      - name: cells
//	        type: int32
//	        rank: 2
//	        counts: [3, 3]
type File struct {
	Types []FileType `yaml:"types"`
}

// FileType declares one type.
type FileType struct {
	Name   string      `yaml:"name"`
	Sheet  string      `yaml:"sheet,omitempty"`
	Fields []FileField `yaml:"fields"`
}

// FileField declares one field.
type FileField struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Rank      int    `yaml:"rank,omitempty"`
	Counts    []int  `yaml:"counts,omitempty"`
	Optional  bool   `yaml:"optional,omitempty"`
	Order     *int   `yaml:"order,omitempty"`
	Ordinal   *int   `yaml:"ordinal,omitempty"`
	SheetName string `yaml:"sheet_name,omitempty"`
}

// LoadYAML decodes type declarations from r.
func LoadYAML(r io.Reader) ([]*TypeDef, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return file.Defs(), nil
}

// Defs converts the file into registrable declarations.
func (f File) Defs() []*TypeDef {
	defs := make([]*TypeDef, 0, len(f.Types))
	for _, ft := range f.Types {
		d := NewType(ft.Name).Sheet(ft.Sheet)
		for _, ff := range ft.Fields {
			opts := []FieldOption{Rank(ff.Rank)}
			if len(ff.Counts) > 0 {
				opts = append(opts, Fixed(ff.Counts...))
			}
			if ff.Optional {
				opts = append(opts, Optional())
			}
			if ff.Order != nil {
				opts = append(opts, Order(*ff.Order))
			}
			if ff.Ordinal != nil {
				opts = append(opts, Ordinal(*ff.Ordinal))
			}
			if ff.SheetName != "" {
				opts = append(opts, SheetName(ff.SheetName))
			}
			d.Field(ff.Name, ff.Type, opts...)
		}
		defs = append(defs, d)
	}
	return defs
}
