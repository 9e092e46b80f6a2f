package models

// Tier represents the methodology tier chosen for a request.
// The tier decides how many analysis phases run after retrieval.
type Tier string

const (
	// TierLight is for requests fully answered by retrieved knowledge.
	// The plan contains only trivial post-processing.
	TierLight Tier = "light"
	// TierMedium is for requests where retrieved patterns apply but need
	// adaptation or concrete construction.
	TierMedium Tier = "medium"
	// TierFull is for novel domains with significant knowledge gaps.
	// The plan runs the complete analysis catalogue.
	TierFull Tier = "full"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierLight, TierMedium, TierFull:
		return true
	default:
		return false
	}
}

// ResourceClass classifies how expensive a capability is to invoke.
type ResourceClass string

const (
	// ResourceLight capabilities are cheap text transforms.
	ResourceLight ResourceClass = "light"
	// ResourceMedium capabilities do moderate analysis work.
	ResourceMedium ResourceClass = "medium"
	// ResourceHeavy capabilities are the most expensive to run.
	ResourceHeavy ResourceClass = "heavy"
)

// Valid returns true if the resource class is a known value.
func (c ResourceClass) Valid() bool {
	switch c {
	case ResourceLight, ResourceMedium, ResourceHeavy:
		return true
	default:
		return false
	}
}

// WorkUnits returns the abstract work-unit cost charged against the plan
// budget when a capability of this class is invoked.
func (c ResourceClass) WorkUnits() int64 {
	switch c {
	case ResourceLight:
		return 500
	case ResourceMedium:
		return 1500
	case ResourceHeavy:
		return 4000
	default:
		return 1500
	}
}
