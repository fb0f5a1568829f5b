package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// GrainColumn is one column of an aggregation grain. Expr equals Name when
// the column exists verbatim in the source table; otherwise it is a derived
// SQL expression (e.g. date_trunc('month', announced_date)).
type GrainColumn struct {
	Name string
	Expr string
}

// Derived reports whether the column is computed rather than selected as-is.
func (g GrainColumn) Derived() bool {
	return g.Expr != g.Name
}

// GrainSpec is the ordered grain of an aggregation. The registry accepts two
// shapes: a list of column names, or a mapping from column name to SQL
// expression. Declaration order is preserved so generated SQL is stable.
type GrainSpec struct {
	Columns []GrainColumn
}

// Names returns the grain column names in declaration order.
func (g GrainSpec) Names() []string {
	out := make([]string, len(g.Columns))
	for i, c := range g.Columns {
		out[i] = c.Name
	}
	return out
}

func (g *GrainSpec) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return fmt.Errorf("grain: empty document")
	}
	switch trimmed[0] {
	case '[':
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return err
		}
		g.Columns = columnsFromNames(names)
		return nil
	case '{':
		// encoding/json map decoding loses key order; walk the token
		// stream instead.
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return err
		}
		cols := []GrainColumn{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			name, ok := keyTok.(string)
			if !ok {
				return fmt.Errorf("grain: unexpected key %v", keyTok)
			}
			var expr string
			if err := dec.Decode(&expr); err != nil {
				return fmt.Errorf("grain %q: %w", name, err)
			}
			cols = append(cols, GrainColumn{Name: name, Expr: expr})
		}
		g.Columns = cols
		return nil
	default:
		return fmt.Errorf("grain: expected list or mapping")
	}
}

func (g GrainSpec) MarshalJSON() ([]byte, error) {
	allVerbatim := true
	for _, c := range g.Columns {
		if c.Derived() {
			allVerbatim = false
			break
		}
	}
	if allVerbatim {
		return json.Marshal(g.Names())
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range g.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(c.Name)
		v, _ := json.Marshal(c.Expr)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (g *GrainSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		g.Columns = columnsFromNames(names)
		return nil
	case yaml.MappingNode:
		// yaml.Node mapping content alternates key, value and keeps
		// document order.
		cols := make([]GrainColumn, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var name, expr string
			if err := node.Content[i].Decode(&name); err != nil {
				return err
			}
			if err := node.Content[i+1].Decode(&expr); err != nil {
				return fmt.Errorf("grain %q: %w", name, err)
			}
			cols = append(cols, GrainColumn{Name: name, Expr: expr})
		}
		g.Columns = cols
		return nil
	default:
		return fmt.Errorf("grain: expected list or mapping")
	}
}

func columnsFromNames(names []string) []GrainColumn {
	cols := make([]GrainColumn, len(names))
	for i, name := range names {
		cols[i] = GrainColumn{Name: name, Expr: name}
	}
	return cols
}
