package generator

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/refero/internal/models"
)

//go:embed frameworks.yaml
var frameworksYAML []byte

// frameworkControl is one control of a compliance framework, matched to
// findings by advisory category.
type frameworkControl struct {
	Control    string            `yaml:"control"`
	Categories []models.Category `yaml:"categories"`
}

type framework struct {
	Name     string             `yaml:"name"`
	Controls []frameworkControl `yaml:"controls"`
}

type taxonomyFile struct {
	Frameworks []framework `yaml:"frameworks"`
}

// loadTaxonomy parses the embedded framework taxonomy. The file ships with
// the binary so the mapping is stable across deployments.
func loadTaxonomy() ([]framework, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(frameworksYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse framework taxonomy: %w", err)
	}
	return file.Frameworks, nil
}
