// Package loader reads flat records for import from CSV, JSON, NDJSON, YAML
// and TOML.
package loader

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Formats accepted by Load.
const (
	FormatAuto   = ""
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
	FormatYAML   = "yaml"
	FormatTOML   = "toml"
)

// ErrNoRecords is returned when the input holds no records.
var ErrNoRecords = errors.New("no records found")

// Records is a decoded import batch.
type Records struct {
	// Columns lists every key in first-seen order.
	Columns []string
	Rows    []map[string]string
}

// Numeric reports whether every non-empty value of column parses as a
// number. A column with no values is not numeric.
func (r Records) Numeric(column string) bool {
	seen := false
	for _, row := range r.Rows {
		v := strings.TrimSpace(row[column])
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		seen = true
	}
	return seen
}

// Load decodes data in the given format. FormatAuto sniffs the content.
func Load(data []byte, format string) (Records, error) {
	if format == FormatAuto {
		format = Detect(data)
	}
	var (
		recs Records
		err  error
	)
	switch format {
	case FormatCSV:
		recs, err = loadCSV(data)
	case FormatJSON, FormatYAML:
		recs, err = loadYAML(data)
	case FormatNDJSON:
		recs, err = loadNDJSON(data)
	case FormatTOML:
		recs, err = loadTOML(data)
	default:
		return Records{}, fmt.Errorf("unsupported import format %q: valid values are csv, json, ndjson, yaml, toml", format)
	}
	if err != nil {
		return Records{}, err
	}
	if len(recs.Rows) == 0 {
		return Records{}, ErrNoRecords
	}
	return recs, nil
}

// FormatForPath maps a file extension onto a format, or FormatAuto.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".ndjson", ".jsonl":
		return FormatNDJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatAuto
	}
}

// Detect guesses the format of data. CSV is the fallback because a header
// line alone is valid CSV.
func Detect(data []byte) string {
	input := strings.TrimSpace(string(data))
	lines := strings.Split(input, "\n")
	switch {
	case strings.HasPrefix(input, "---") || strings.Contains(input, "\n---"):
		return FormatYAML
	case isLikelyTOML(lines):
		return FormatTOML
	case strings.HasPrefix(input, "["):
		return FormatJSON
	case strings.HasPrefix(input, "{"):
		if isLikelyNDJSON(lines) {
			return FormatNDJSON
		}
		return FormatJSON
	case strings.HasPrefix(input, "- ") || yamlMapping.MatchString(lines[0]):
		return FormatYAML
	default:
		return FormatCSV
	}
}

var yamlMapping = regexp.MustCompile(`^[A-Za-z_][\w -]*:(\s|$)`)

// isLikelyNDJSON requires several lines, most of them JSON objects.
func isLikelyNDJSON(lines []string) bool {
	objects, nonEmpty := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if strings.HasPrefix(trimmed, "{") {
			objects++
		}
	}
	return nonEmpty > 1 && objects > nonEmpty/2
}

var (
	tomlSection  = regexp.MustCompile(`^\s*\[{1,2}[A-Za-z_][\w.-]*\]{1,2}\s*$`)
	tomlKeyValue = regexp.MustCompile(`^\s*[A-Za-z_][\w.-]*\s*=\s*.+$`)
)

// isLikelyTOML looks for [section] headers or mostly key = value lines.
func isLikelyTOML(lines []string) bool {
	kv, nonEmpty := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		nonEmpty++
		if tomlSection.MatchString(line) {
			return true
		}
		if tomlKeyValue.MatchString(line) {
			kv++
		}
	}
	return nonEmpty > 0 && kv > nonEmpty/2
}

func loadCSV(data []byte) (Records, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return Records{}, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) == 0 {
		return Records{}, nil
	}
	var out Records
	for _, h := range records[0] {
		out.Columns = append(out.Columns, strings.TrimSpace(h))
	}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(out.Columns))
		for j, h := range out.Columns {
			if j < len(rec) {
				row[h] = rec[j]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// loadYAML also reads JSON. Decoding into yaml.Node keeps the key order.
func loadYAML(data []byte) (Records, error) {
	var out Records
	seen := map[string]bool{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Records{}, fmt.Errorf("invalid YAML/JSON: %w", err)
		}
		if err := out.addNode(&doc, seen); err != nil {
			return Records{}, err
		}
	}
	return out, nil
}

func loadNDJSON(data []byte) (Records, error) {
	var out Records
	seen := map[string]bool{}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			return Records{}, fmt.Errorf("line %d: invalid JSON", i+1)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(line), &doc); err != nil {
			return Records{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		if err := out.addNode(&doc, seen); err != nil {
			return Records{}, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return out, nil
}

// addNode appends a document that is a mapping or a sequence of mappings.
func (r *Records) addNode(n *yaml.Node, seen map[string]bool) error {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil
		}
		n = n.Content[0]
	}
	switch n.Kind {
	case yaml.SequenceNode:
		for i, item := range n.Content {
			if item.Kind != yaml.MappingNode {
				return fmt.Errorf("item %d: expected an object, got %s", i+1, kindName(item))
			}
			if err := r.addNode(item, seen); err != nil {
				return err
			}
		}
		return nil
	case yaml.MappingNode:
		row := make(map[string]string, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := scalarValue(n.Content[i+1])
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			row[key] = v
			if !seen[key] {
				seen[key] = true
				r.Columns = append(r.Columns, key)
			}
		}
		r.Rows = append(r.Rows, row)
		return nil
	default:
		return fmt.Errorf("expected an object or a list of objects, got %s", kindName(n))
	}
}

// scalarValue flattens a node to a cell value. Nested values are stored as
// compact JSON.
func scalarValue(n *yaml.Node) (string, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!null" {
			return "", nil
		}
		return n.Value, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.SequenceNode:
		return "a list"
	case yaml.MappingNode:
		return "an object"
	default:
		return "nothing"
	}
}

// loadTOML reads the first array of tables, e.g. the "rows" key written by
// `kvgrid dump -o toml`. Keys are sorted since TOML tables are unordered once
// decoded.
func loadTOML(data []byte) (Records, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Records{}, fmt.Errorf("invalid TOML: %w", err)
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out Records
	seen := map[string]bool{}
	for _, k := range keys {
		items, ok := doc[k].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			cols := make([]string, 0, len(m))
			for c := range m {
				cols = append(cols, c)
			}
			sort.Strings(cols)
			row := make(map[string]string, len(m))
			for _, c := range cols {
				row[c] = formatValue(m[c])
				if !seen[c] {
					seen[c] = true
					out.Columns = append(out.Columns, c)
				}
			}
			out.Rows = append(out.Rows, row)
		}
		if len(out.Rows) > 0 {
			return out, nil
		}
	}
	return out, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
