package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// Format is an output format for rows.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
)

// IDField is the record key carrying the row id in structured output.
const IDField = "_id"

// Formats lists the accepted formats in help order.
var Formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatYAML, FormatTOML}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatTable, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid output format %q: valid values are table, csv, json, yaml, toml", s)
}

// WriteOptions configures WriteRows.
type WriteOptions struct {
	Table TableOptions
	// WithIDs adds the row id to csv and structured output.
	WithIDs bool
}

// WriteRows renders rows to w in the given format.
func WriteRows(w io.Writer, format Format, cols []grid.Column, rows []grid.Row, opts WriteOptions) error {
	switch format {
	case FormatTable, "":
		_, err := io.WriteString(w, RenderTable(cols, rows, opts.Table))
		return err
	case FormatCSV:
		return writeCSV(w, cols, rows, opts.WithIDs)
	case FormatJSON:
		recs := make([]orderedRecord, len(rows))
		for i, r := range rows {
			recs[i] = newRecord(cols, r, opts.WithIDs)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case FormatYAML:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, r := range rows {
			seq.Content = append(seq.Content, newRecord(cols, r, opts.WithIDs).yamlNode())
		}
		if len(rows) == 0 {
			seq.Style = yaml.FlowStyle
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(seq); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		out := make([]map[string]any, len(rows))
		for i, r := range rows {
			out[i] = newRecord(cols, r, opts.WithIDs).tomlMap()
		}
		b, err := toml.Marshal(map[string]any{"rows": out})
		if err != nil {
			return fmt.Errorf("marshal toml: %w", err)
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeCSV(w io.Writer, cols []grid.Column, rows []grid.Row, withIDs bool) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(cols)+1)
	if withIDs {
		header = append(header, IDField)
	}
	for _, c := range cols {
		header = append(header, c.Name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, 0, len(header))
		if withIDs {
			rec = append(rec, r.ID)
		}
		for _, c := range cols {
			rec = append(rec, r.Value(c.ID))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type field struct {
	key   string
	value any // string, float64 or nil
}

// orderedRecord keeps column order in structured output.
type orderedRecord []field

func newRecord(cols []grid.Column, r grid.Row, withID bool) orderedRecord {
	rec := make(orderedRecord, 0, len(cols)+1)
	if withID {
		rec = append(rec, field{IDField, r.ID})
	}
	for _, c := range cols {
		rec = append(rec, field{c.Name, typedValue(c.Type, r.Value(c.ID))})
	}
	return rec
}

// typedValue turns NUMBER cells into numbers and empty cells into nil.
func typedValue(t grid.ColumnType, v string) any {
	if v == "" {
		return nil
	}
	if t == grid.ColumnNumber {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return v
}

func (r orderedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r orderedRecord) yamlNode() *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range r {
		val := &yaml.Node{}
		switch v := f.value.(type) {
		case nil:
			val.Kind, val.Tag, val.Value = yaml.ScalarNode, "!!null", "null"
		case float64:
			val.Kind, val.Value = yaml.ScalarNode, strconv.FormatFloat(v, 'f', -1, 64)
		default:
			_ = val.Encode(v)
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.key}, val)
	}
	return m
}

// tomlMap drops nil values, which TOML cannot represent.
func (r orderedRecord) tomlMap() map[string]any {
	out := make(map[string]any, len(r))
	for _, f := range r {
		if f.value != nil {
			out[f.key] = f.value
		}
	}
	return out
}
