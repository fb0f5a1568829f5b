// Package registry holds the declarative normalization registry: the single
// source of truth for every domain lift and every aggregation rebuild. No
// per-domain code exists anywhere else; adding a data source is a registry
// edit plus migrations.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sofiapulse/pulse/pkg/serrors"
)

// Format of a registry document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// UpdateStrategy controls how an aggregation writes its target table.
type UpdateStrategy string

const (
	StrategyReplace UpdateStrategy = "replace"
	StrategyUpsert  UpdateStrategy = "upsert"
	StrategyAppend  UpdateStrategy = "append"
)

// Source describes one staging table feeding a domain.
type Source struct {
	SourceID     string            `json:"source_id" yaml:"source_id"`
	Table        string            `json:"table" yaml:"table"`
	FieldMapping map[string]string `json:"field_mapping" yaml:"field_mapping"`
	UniqueKey    []string          `json:"unique_key" yaml:"unique_key"`
}

// Domain describes one canonical table and the sources lifted into it.
type Domain struct {
	Enabled            bool     `json:"enabled" yaml:"enabled"`
	TargetTable        string   `json:"target_table" yaml:"target_table"`
	ConflictResolution string   `json:"conflict_resolution" yaml:"conflict_resolution"`
	Sources            []Source `json:"sources" yaml:"sources"`
}

// Aggregation describes one grouped rewrite of a canonical table.
type Aggregation struct {
	Enabled        bool              `json:"enabled" yaml:"enabled"`
	SourceTable    string            `json:"source_table" yaml:"source_table"`
	TargetTable    string            `json:"target_table" yaml:"target_table"`
	Grain          GrainSpec         `json:"grain" yaml:"grain"`
	Metrics        map[string]string `json:"metrics" yaml:"metrics"`
	Filters        string            `json:"filters" yaml:"filters"`
	UpdateStrategy UpdateStrategy    `json:"update_strategy" yaml:"update_strategy"`
}

// Registry is the parsed document: domains keyed by domain id, aggregations
// keyed by aggregation id.
type Registry struct {
	Domains      map[string]Domain      `json:"domains" yaml:"domains"`
	Aggregations map[string]Aggregation `json:"aggregations" yaml:"aggregations"`
}

// Load reads and validates a registry document, detecting the format from the
// file extension (.json, .yaml, .yml).
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.NewRegistryError(path, err.Error())
	}
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return Parse(data, format)
}

// Parse decodes and validates a registry document.
func Parse(data []byte, format Format) (*Registry, error) {
	r := &Registry{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, r)
	default:
		err = json.Unmarshal(data, r)
	}
	if err != nil {
		return nil, serrors.NewRegistryError("$", err.Error())
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Domain returns the descriptor for a domain id. Unknown ids fail with
// DOMAIN_NOT_FOUND listing the available ids.
func (r *Registry) Domain(id string) (Domain, error) {
	d, ok := r.Domains[id]
	if !ok {
		return Domain{}, serrors.NewError(
			serrors.CodeDomainNotFound,
			"unknown domain "+quote(id)+"; available: "+strings.Join(r.DomainIDs(), ", "),
		)
	}
	return d, nil
}

// Aggregation returns the descriptor for an aggregation id. Unknown ids fail
// with AGGREGATION_NOT_FOUND listing the available ids.
func (r *Registry) Aggregation(id string) (Aggregation, error) {
	a, ok := r.Aggregations[id]
	if !ok {
		return Aggregation{}, serrors.NewError(
			serrors.CodeAggregationNotFound,
			"unknown aggregation "+quote(id)+"; available: "+strings.Join(r.AggregationIDs(), ", "),
		)
	}
	return a, nil
}

// DomainIDs returns all domain ids, sorted.
func (r *Registry) DomainIDs() []string {
	ids := make([]string, 0, len(r.Domains))
	for id := range r.Domains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AggregationIDs returns all aggregation ids, sorted.
func (r *Registry) AggregationIDs() []string {
	ids := make([]string, 0, len(r.Aggregations))
	for id := range r.Aggregations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func quote(s string) string {
	return `"` + s + `"`
}

// MappedColumns returns the canonical columns of a field mapping in stable
// order: source and source_id first, the rest alphabetical. The normalizer
// relies on this order being deterministic across runs.
func (s Source) MappedColumns() []string {
	cols := make([]string, 0, len(s.FieldMapping))
	for col := range s.FieldMapping {
		if col == "source" || col == "source_id" {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	out := make([]string, 0, len(s.FieldMapping))
	if _, ok := s.FieldMapping["source"]; ok {
		out = append(out, "source")
	}
	if _, ok := s.FieldMapping["source_id"]; ok {
		out = append(out, "source_id")
	}
	return append(out, cols...)
}

// MetricColumns returns the metric columns of an aggregation, sorted.
func (a Aggregation) MetricColumns() []string {
	cols := make([]string, 0, len(a.Metrics))
	for col := range a.Metrics {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
