package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompt.yaml
var defaultPromptYAML []byte

var ErrEmptyInstruction = errors.New("prompt template has no instruction")

// PromptTemplate is the instruction text placed ahead of every article prompt.
type PromptTemplate struct {
	Version     int    `yaml:"version"`
	Instruction string `yaml:"instruction"`
}

// LoadPromptTemplate reads the template at path, or the built-in template
// when path is empty.
func LoadPromptTemplate(path string) (*PromptTemplate, error) {
	data := defaultPromptYAML
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		data = raw
	}
	return ParsePromptTemplate(data)
}

// ParsePromptTemplate decodes a YAML prompt template.
func ParsePromptTemplate(data []byte) (*PromptTemplate, error) {
	var tmpl PromptTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("decode prompt template: %w", err)
	}
	tmpl.Instruction = strings.TrimSpace(tmpl.Instruction)
	if tmpl.Instruction == "" {
		return nil, ErrEmptyInstruction
	}
	return &tmpl, nil
}
