package maimemo

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// レスポンス形式ごとのスキーマ名。
const (
	schemaEnvelope   = "envelope.json"
	schemaNotepad    = "notepad.json"
	schemaNotepads   = "notepads.json"
	schemaVocabulary = "vocabulary.json"
)

// schemaSet はコンパイル済みのレスポンススキーマ。
type schemaSet map[string]*jsonschema.Schema

// loadSchemas は埋め込みスキーマを一度だけコンパイルする。
var loadSchemas = sync.OnceValues(compileSchemas)

func compileSchemas() (schemaSet, error) {
	names := []string{schemaEnvelope, schemaNotepad, schemaNotepads, schemaVocabulary}

	compiler := jsonschema.NewCompiler()
	for _, name := range names {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", name, err)
		}
	}

	set := make(schemaSet, len(names))
	for _, name := range names {
		s, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		set[name] = s
	}
	return set, nil
}
