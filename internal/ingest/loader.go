// Package ingest читает файлы с наборами полей требований (выгрузки импорта или ответы генерации).
// Поддерживается YAML и JSON: либо список строк, либо документ с полями source и requirements.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Batch — разобранный файл: источник (если указан) и строки "колонка → значение".
type Batch struct {
	Source string
	Rows   []map[string]string
}

type document struct {
	Source       string           `yaml:"source"`
	Requirements []map[string]any `yaml:"requirements"`
}

var ErrEmpty = errors.New("ingest file has no rows")

// Load читает и разбирает файл.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func Parse(data []byte) (*Batch, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, ErrEmpty
	}

	var (
		source string
		raw    []map[string]any
	)
	switch node := root.Content[0]; node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
	case yaml.MappingNode:
		var doc document
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		source, raw = doc.Source, doc.Requirements
	default:
		return nil, fmt.Errorf("unexpected top-level node at line %d", node.Line)
	}
	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	b := &Batch{Source: source, Rows: make([]map[string]string, 0, len(raw))}
	for _, r := range raw {
		row := make(map[string]string, len(r))
		for k, v := range r {
			row[k] = stringify(v)
		}
		b.Rows = append(b.Rows, row)
	}
	return b, nil
}

// stringify приводит скаляр к строке так, как он выглядел бы в ячейке таблицы.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
