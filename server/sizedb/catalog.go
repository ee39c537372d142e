// Package sizedb holds the object-size knowledge base: label in, known
// real-world size out. The matching strategy is pluggable; the default
// catalog matches exact lower-cased labels.
package sizedb

import (
	"sort"
	"strings"

	"github.com/rangelab/camranger/server/models"
)

// Lookup is the contract the ranging engine consumes. Implementations answer
// absent (false) for labels they don't know; they never fail.
type Lookup interface {
	Lookup(label string) (models.KnownObjectSize, bool)
}

// Catalog is the default in-memory knowledge base, read-only after
// construction so it is safe to share across sessions.
type Catalog struct {
	byLabel map[string]models.KnownObjectSize
}

// NewCatalog builds a catalog from the built-in records, with entries
// overlaid on top (matching labels replace built-ins).
func NewCatalog(overrides []models.KnownObjectSize) *Catalog {
	c := &Catalog{byLabel: make(map[string]models.KnownObjectSize)}
	for _, rec := range builtinSizes {
		c.byLabel[rec.Label] = rec
	}
	for _, rec := range overrides {
		rec.Label = strings.ToLower(strings.TrimSpace(rec.Label))
		if rec.Label == "" {
			continue
		}
		c.byLabel[rec.Label] = rec
	}
	return c
}

// Lookup resolves a detector label to its size record.
func (c *Catalog) Lookup(label string) (models.KnownObjectSize, bool) {
	rec, ok := c.byLabel[strings.ToLower(strings.TrimSpace(label))]
	return rec, ok
}

// List returns all records sorted by label, for the catalog API endpoint.
func (c *Catalog) List() []models.KnownObjectSize {
	out := make([]models.KnownObjectSize, 0, len(c.byLabel))
	for _, rec := range c.byLabel {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// builtinSizes covers the detector's class set. Sizes are along each
// record's measurement axis; people and animals use height or shoulder
// height, vehicles use height (length is too pose-dependent from a single
// view).
var builtinSizes = []models.KnownObjectSize{
	{Label: "person", Category: models.CategoryHuman, Axis: models.AxisHeight,
		SizeMeters: 1.70, Variability: 0.08, Reliability: 0.9, AspectWH: 0.35},

	{Label: "car", Category: models.CategoryVehicle, Axis: models.AxisHeight,
		SizeMeters: 1.45, Variability: 0.10, Reliability: 0.85, AspectWH: 2.9},
	{Label: "van", Category: models.CategoryVehicle, Axis: models.AxisHeight,
		SizeMeters: 2.00, Variability: 0.12, Reliability: 0.8, AspectWH: 2.4},
	{Label: "truck", Category: models.CategoryVehicle, Axis: models.AxisHeight,
		SizeMeters: 3.20, Variability: 0.18, Reliability: 0.7, AspectWH: 2.5},
	{Label: "bus", Category: models.CategoryVehicle, Axis: models.AxisHeight,
		SizeMeters: 3.10, Variability: 0.10, Reliability: 0.8, AspectWH: 3.3},
	{Label: "motorcycle", Category: models.CategoryVehicle, Axis: models.AxisHeight,
		SizeMeters: 1.10, Variability: 0.12, Reliability: 0.75, AspectWH: 1.9},
	{Label: "bicycle", Category: models.CategoryVehicle, Axis: models.AxisHeight,
		SizeMeters: 1.05, Variability: 0.10, Reliability: 0.7, AspectWH: 1.7},

	{Label: "deer", Category: models.CategoryWildlife, Axis: models.AxisShoulderHeight,
		SizeMeters: 0.95, Variability: 0.15, Reliability: 0.7, AspectWH: 1.4},
	{Label: "elk", Category: models.CategoryWildlife, Axis: models.AxisShoulderHeight,
		SizeMeters: 1.40, Variability: 0.12, Reliability: 0.7, AspectWH: 1.5},
	{Label: "wild_boar", Category: models.CategoryWildlife, Axis: models.AxisShoulderHeight,
		SizeMeters: 0.80, Variability: 0.18, Reliability: 0.6, AspectWH: 1.7},
	{Label: "coyote", Category: models.CategoryWildlife, Axis: models.AxisShoulderHeight,
		SizeMeters: 0.55, Variability: 0.12, Reliability: 0.6, AspectWH: 1.8},
	{Label: "bear", Category: models.CategoryWildlife, Axis: models.AxisShoulderHeight,
		SizeMeters: 1.00, Variability: 0.20, Reliability: 0.6, AspectWH: 1.6},
	{Label: "turkey", Category: models.CategoryWildlife, Axis: models.AxisHeight,
		SizeMeters: 0.75, Variability: 0.15, Reliability: 0.55, AspectWH: 1.0},

	{Label: "stop_sign", Category: models.CategorySign, Axis: models.AxisWidth,
		SizeMeters: 0.75, Variability: 0.02, Reliability: 0.95, AspectWH: 1.0},
	{Label: "door", Category: models.CategoryStructure, Axis: models.AxisHeight,
		SizeMeters: 2.03, Variability: 0.05, Reliability: 0.85, AspectWH: 0.45},
}
