package seed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed startups.schema.json
var startupsSchemaJSON string

// StartupInput is one entry of a startup import file. Exactly one of Sector
// (by name) and SectorID is set.
type StartupInput struct {
	Name            string   `json:"name"`
	Sector          string   `json:"sector,omitempty"`
	SectorID        int      `json:"sector_id,omitempty"`
	Description     string   `json:"description,omitempty"`
	ImageURL        *string  `json:"image_url,omitempty"`
	FindingKeywords []string `json:"finding_keywords"`
}

type StartupFile struct {
	Startups []StartupInput `json:"startups"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ParseStartupFile validates raw against the import schema and the rules the
// schema cannot express.
func ParseStartupFile(raw []byte) (*StartupFile, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode startup file JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var file StartupFile
	if err := json.Unmarshal(bytes.TrimSpace(raw), &file); err != nil {
		return nil, fmt.Errorf("unmarshal startup file: %w", err)
	}

	if err := validateSemantics(&file); err != nil {
		return nil, err
	}

	return &file, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("startups.schema.json", strings.NewReader(startupsSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("startups.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("file contains trailing content")
	}

	return value, nil
}

func validateSemantics(file *StartupFile) error {
	if file == nil {
		return fmt.Errorf("startup file is nil")
	}

	seen := make(map[string]int, len(file.Startups))
	for i, s := range file.Startups {
		name := NormalizeName(s.Name)
		if name == "" {
			return fmt.Errorf("startups[%d]: name must not be blank", i)
		}
		if s.ImageURL != nil {
			if err := validateHTTPURL(fmt.Sprintf("startups[%d].image_url", i), *s.ImageURL); err != nil {
				return err
			}
		}

		blank := 0
		for _, kw := range s.FindingKeywords {
			if strings.TrimSpace(kw) == "" {
				blank++
			}
		}
		if blank == len(s.FindingKeywords) {
			return fmt.Errorf("startups[%d] (%s): finding_keywords must contain a non-blank keyword", i, s.Name)
		}

		key := name + "\x1f" + strings.ToLower(strings.TrimSpace(s.Sector)) + "\x1f" + fmt.Sprint(s.SectorID)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("startups[%d] duplicates startups[%d] (%s)", i, prev, s.Name)
		}
		seen[key] = i
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s must be a valid URL: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
