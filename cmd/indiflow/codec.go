package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"indiflow/internal/models"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// formatFor picks the codec from an explicit flag value or the file
// extension, defaulting to JSON.
func formatFor(path, override string) (string, error) {
	f := strings.ToLower(override)
	if f == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			f = formatYAML
		default:
			f = formatJSON
		}
	}
	switch f {
	case formatJSON, formatYAML:
		return f, nil
	case "yml":
		return formatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q (want json or yaml)", override)
}

// encodeFlows writes v as indented JSON or as YAML. YAML goes through the
// JSON form so the action codecs of the flow model apply to both.
func encodeFlows(w io.Writer, v interface{}, format string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format == formatJSON {
		_, err = w.Write(append(data, '\n'))
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// decodeFlows reads either a list of flows or a single flow.
func decodeFlows(r io.Reader, format string) ([]models.IndiFlow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == formatYAML {
		var generic interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if data, err = json.Marshal(generic); err != nil {
			return nil, err
		}
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var flow models.IndiFlow
		if err := json.Unmarshal(data, &flow); err != nil {
			return nil, fmt.Errorf("parse flow: %w", err)
		}
		return []models.IndiFlow{flow}, nil
	}
	var flows []models.IndiFlow
	if err := json.Unmarshal(data, &flows); err != nil {
		return nil, fmt.Errorf("parse flows: %w", err)
	}
	return flows, nil
}
