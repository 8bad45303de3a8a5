package schema

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a schema file
type File struct {
	Apps map[string]AppSpec `yaml:"apps"`
}

// AppSpec lists the models of one app
type AppSpec struct {
	Models []ModelSpec `yaml:"models"`
}

// ModelSpec describes one model in a schema file
type ModelSpec struct {
	Name      string         `yaml:"name"`
	Table     string         `yaml:"table"`
	Fields    []FieldSpec    `yaml:"fields"`
	Relations []RelationSpec `yaml:"relations"`
}

// FieldSpec describes one scalar field in a schema file
type FieldSpec struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Column     string `yaml:"column"`
	Nullable   bool   `yaml:"nullable"`
	Primary    bool   `yaml:"primary"`
	Auto       bool   `yaml:"auto"`
	AutoUpdate bool   `yaml:"auto_update"`
	Length     *int   `yaml:"length"`
	Precision  *int   `yaml:"precision"`
	Scale      *int   `yaml:"scale"`
}

// RelationSpec describes one relation in a schema file
type RelationSpec struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Target        string `yaml:"target"`
	ForeignKey    string `yaml:"foreign_key"`
	Nullable      bool   `yaml:"nullable"`
	OnDelete      string `yaml:"on_delete"`
	Through       string `yaml:"through"`
	ThroughSource string `yaml:"through_source"`
	ThroughTarget string `yaml:"through_target"`
	Origin        string `yaml:"origin"`
}

// LoadFile reads a schema file and registers its models
func LoadFile(path string, registry *Registry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()

	if err := Load(f, registry); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load decodes a schema document and registers its models. Apps are
// registered in name order, models in file order.
func Load(r io.Reader, registry *Registry) error {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return fmt.Errorf("parse schema: %w", err)
	}

	apps := make([]string, 0, len(file.Apps))
	for app := range file.Apps {
		apps = append(apps, app)
	}
	sort.Strings(apps)

	for _, app := range apps {
		for _, spec := range file.Apps[app].Models {
			m, err := spec.Build(app)
			if err != nil {
				return err
			}
			if err := registry.Register(m); err != nil {
				return err
			}
		}
	}

	return nil
}

// Build converts the schema entry into a model descriptor for the given app
func (s ModelSpec) Build(app string) (*Model, error) {
	m := NewModel(app, s.Name)
	if s.Table != "" {
		m.Table = s.Table
	}

	for _, fs := range s.Fields {
		typ, err := ParsePrimitiveType(fs.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s.%s: %w", app, s.Name, fs.Name, err)
		}
		field := &Field{
			Name:       fs.Name,
			Type:       typ,
			Column:     fs.Column,
			Nullable:   fs.Nullable,
			Primary:    fs.Primary,
			Auto:       fs.Auto || (fs.Primary && typ == TypeSerial),
			AutoUpdate: fs.AutoUpdate,
			Length:     fs.Length,
			Precision:  fs.Precision,
			Scale:      fs.Scale,
		}
		if err := m.AddField(field); err != nil {
			return nil, err
		}
	}

	for _, rs := range s.Relations {
		typ, err := ParseRelationType(rs.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s.%s: %w", app, s.Name, rs.Name, err)
		}
		onDelete, err := ParseCascadeAction(rs.OnDelete)
		if err != nil {
			return nil, fmt.Errorf("%s.%s.%s: %w", app, s.Name, rs.Name, err)
		}
		rel := &Relation{
			Name:          rs.Name,
			Type:          typ,
			Target:        rs.Target,
			ForeignKey:    rs.ForeignKey,
			Nullable:      rs.Nullable,
			OnDelete:      onDelete,
			Through:       rs.Through,
			ThroughSource: rs.ThroughSource,
			ThroughTarget: rs.ThroughTarget,
			Origin:        rs.Origin,
		}
		if err := m.AddRelation(rel); err != nil {
			return nil, err
		}
	}

	return m, nil
}
