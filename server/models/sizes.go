package models

// ObjectCategory is the closed set of object families the size catalog knows
// about. Adding a category means touching every switch on it, which is the
// point: method tags and ranging behavior stay exhaustive.
type ObjectCategory int

const (
	CategoryHuman ObjectCategory = iota
	CategoryVehicle
	CategoryWildlife
	CategoryStructure
	CategorySign
)

func (c ObjectCategory) String() string {
	switch c {
	case CategoryHuman:
		return "human"
	case CategoryVehicle:
		return "vehicle"
	case CategoryWildlife:
		return "wildlife"
	case CategoryStructure:
		return "structure"
	case CategorySign:
		return "sign"
	}
	return "unknown"
}

// MeasurementAxis selects which pixel dimension of a bounding box is compared
// against the known real-world size.
type MeasurementAxis int

const (
	AxisHeight MeasurementAxis = iota
	AxisShoulderHeight
	AxisWidth
	AxisDiagonal
)

func (a MeasurementAxis) String() string {
	switch a {
	case AxisHeight:
		return "height"
	case AxisShoulderHeight:
		return "shoulder_height"
	case AxisWidth:
		return "width"
	case AxisDiagonal:
		return "diagonal"
	}
	return "unknown"
}

// KnownObjectSize is the size catalog's answer for a label: the real-world
// dimension to range against and how much to trust it.
type KnownObjectSize struct {
	Label string `json:"label"`

	Category ObjectCategory  `json:"category"`
	Axis     MeasurementAxis `json:"axis"`

	// SizeMeters is the expected real size along Axis.
	SizeMeters float64 `json:"size_meters"`

	// Variability is the relative spread of the size across individuals,
	// in [0, 1]. A person varies more than a road sign.
	Variability float64 `json:"variability"`

	// Reliability weights this record in fusion, in [0, 1].
	Reliability float64 `json:"reliability"`

	// AspectWH is the expected bounding-box width/height ratio; detections
	// far off this aspect are probably occluded or misframed.
	AspectWH float64 `json:"aspect_wh"`
}
