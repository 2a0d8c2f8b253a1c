package config

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/studyrag/internal/service"
	"gopkg.in/yaml.v3"
)

// Policy holds pattern lists that replace the built-in ones. An omitted
// list keeps the default.
type Policy struct {
	Cleaner struct {
		BoilerplateHeaders []string `yaml:"boilerplate_headers"`
		IrrelevantPatterns []string `yaml:"irrelevant_patterns"`
	} `yaml:"cleaner"`
	Grounding struct {
		TopicDenylist []string `yaml:"topic_denylist"`
	} `yaml:"grounding"`
	Topics struct {
		NumberingLabels []string `yaml:"numbering_labels"`
		StructuralWords []string `yaml:"structural_words"`
		Fallback        string   `yaml:"fallback"`
	} `yaml:"topics"`
	Grading struct {
		Stopwords []string `yaml:"stopwords"`
	} `yaml:"grading"`
}

// LoadPolicy reads a YAML policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return &p, nil
}

// Apply overwrites the lists of pc that the policy sets.
func (p *Policy) Apply(pc *service.PipelineConfig) {
	replace(&pc.Cleaner.BoilerplateHeaders, p.Cleaner.BoilerplateHeaders)
	replace(&pc.Cleaner.IrrelevantPatterns, p.Cleaner.IrrelevantPatterns)
	replace(&pc.Grounding.TopicDenylist, p.Grounding.TopicDenylist)
	replace(&pc.Topics.NumberingLabels, p.Topics.NumberingLabels)
	replace(&pc.Topics.StructuralWords, p.Topics.StructuralWords)
	replace(&pc.Grading.Stopwords, p.Grading.Stopwords)
	if p.Topics.Fallback != "" {
		pc.Topics.Fallback = p.Topics.Fallback
	}
}

func replace(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}
