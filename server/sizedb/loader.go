package sizedb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rangelab/camranger/server/models"
)

// sizeFile is the YAML schema for catalog overrides.
type sizeFile struct {
	Sizes []sizeEntry `yaml:"sizes"`
}

type sizeEntry struct {
	Label       string  `yaml:"label"`
	Category    string  `yaml:"category"`
	Axis        string  `yaml:"axis"`
	SizeMeters  float64 `yaml:"size_meters"`
	Variability float64 `yaml:"variability"`
	Reliability float64 `yaml:"reliability"`
	AspectWH    float64 `yaml:"aspect_wh"`
}

// LoadCatalog reads a YAML override file and overlays it on the built-in
// records. An empty path yields the built-ins alone.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading size catalog: %w", err)
	}

	var file sizeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing size catalog YAML: %w", err)
	}

	overrides := make([]models.KnownObjectSize, 0, len(file.Sizes))
	for i, e := range file.Sizes {
		rec, err := e.toRecord()
		if err != nil {
			return nil, fmt.Errorf("size catalog entry %d (%q): %w", i, e.Label, err)
		}
		overrides = append(overrides, rec)
	}
	return NewCatalog(overrides), nil
}

func (e sizeEntry) toRecord() (models.KnownObjectSize, error) {
	var rec models.KnownObjectSize

	if e.Label == "" {
		return rec, fmt.Errorf("label is required")
	}
	if e.SizeMeters <= 0 {
		return rec, fmt.Errorf("size_meters must be positive")
	}
	if e.Variability < 0 || e.Variability > 1 {
		return rec, fmt.Errorf("variability must be in [0,1]")
	}
	if e.Reliability < 0 || e.Reliability > 1 {
		return rec, fmt.Errorf("reliability must be in [0,1]")
	}

	category, err := parseCategory(e.Category)
	if err != nil {
		return rec, err
	}
	axis, err := parseAxis(e.Axis)
	if err != nil {
		return rec, err
	}

	return models.KnownObjectSize{
		Label:       e.Label,
		Category:    category,
		Axis:        axis,
		SizeMeters:  e.SizeMeters,
		Variability: e.Variability,
		Reliability: e.Reliability,
		AspectWH:    e.AspectWH,
	}, nil
}

func parseCategory(s string) (models.ObjectCategory, error) {
	switch s {
	case "human":
		return models.CategoryHuman, nil
	case "vehicle":
		return models.CategoryVehicle, nil
	case "wildlife":
		return models.CategoryWildlife, nil
	case "structure":
		return models.CategoryStructure, nil
	case "sign":
		return models.CategorySign, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func parseAxis(s string) (models.MeasurementAxis, error) {
	switch s {
	case "height":
		return models.AxisHeight, nil
	case "shoulder_height":
		return models.AxisShoulderHeight, nil
	case "width":
		return models.AxisWidth, nil
	case "diagonal":
		return models.AxisDiagonal, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}
