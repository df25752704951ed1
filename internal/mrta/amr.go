package mrta

import "time"

// Ability is the pair (load-carrier kind, max payload) that gates which
// tasks an AMR may execute. It forms a partial order: a <= b iff both
// dimensions satisfy <=.
type Ability struct {
	LoadCarrier  string
	MaxPayloadKg float64
}

// LessEq reports whether a is admissible given ability b, i.e. a <= b.
func (a Ability) LessEq(b Ability) bool {
	return a.LoadCarrier == b.LoadCarrier && a.MaxPayloadKg <= b.MaxPayloadKg
}

// Equal reports exact equality of both dimensions.
func (a Ability) Equal(b Ability) bool {
	return a.LoadCarrier == b.LoadCarrier && a.MaxPayloadKg == b.MaxPayloadKg
}

// Kinematics describes an AMR's motion envelope. AMin is negative (it is a
// deceleration), everything else is non-negative.
type Kinematics struct {
	VMax float64
	VMin float64
	AMax float64
	AMin float64 // < 0
}

// MaxDeceleration returns |AMin|, the magnitude used throughout the
// trapezoidal motion formulas.
func (k Kinematics) MaxDeceleration() float64 {
	if k.AMin < 0 {
		return -k.AMin
	}
	return k.AMin
}

// LoadHandling describes how long loading/unloading takes and which
// carrier/payload ability the AMR offers.
type LoadHandling struct {
	LoadTime   time.Duration
	UnloadTime time.Duration
	Ability    Ability
}

// PhysicalProperties carries weight and footprint, informational only for
// the cost oracle.
type PhysicalProperties struct {
	WeightKg    float64
	BoundingBox [2]Position
}

// AMRDescription is the complete static description of one AMR used by the
// mobility helper and order management as ground truth.
type AMRDescription struct {
	SerialNumber    string
	Kinematics      Kinematics
	LoadHandling    LoadHandling
	Physical        PhysicalProperties
	Functionalities map[FunctionalityKind]bool
}

// Supports reports whether the description lists kind among its supported
// functionalities.
func (d AMRDescription) Supports(kind FunctionalityKind) bool {
	return d.Functionalities[kind]
}
