package screwtheory

import (
	"encoding/json"

	"github.com/a8m/envsubst"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/screwik/referenceframe"
	"go.viam.com/screwik/spatialmath"
	"go.viam.com/screwik/utils"
)

// ErrNoChainInformation is used when a chain description is empty.
var ErrNoChainInformation = errors.New("no chain information")

// ChainConfig represents all supported fields in a chain description file.
type ChainConfig struct {
	Name string `json:"name"`
	// H0 is the pose of the first joint frame in the world frame, as 16 row-major values.
	H0 []float64 `json:"H0,omitempty" jsonschema:"minItems=16,maxItems=16"`
	// HN is the tool offset after the last link, as 16 row-major values.
	HN    []float64    `json:"HN,omitempty" jsonschema:"minItems=16,maxItems=16"`
	Links []LinkConfig `json:"links"`
	// Mins and Maxs are joint limits, in degrees for revolute joints and meters for prismatic ones. Leaving both
	// out makes every joint unbounded.
	Mins     []float64 `json:"mins"`
	Maxs     []float64 `json:"maxs"`
	Strategy string    `json:"strategy,omitempty"`
}

// LinkConfig describes one joint. Exactly one of its fields is set.
type LinkConfig struct {
	Screw *ScrewConfig `json:"screw,omitempty"`
	DH    *DHConfig    `json:"dh,omitempty"`
	XYZ   *XYZConfig   `json:"xyz,omitempty"`
}

// ScrewConfig gives a joint's screw directly, at the zero configuration, in the frame after H0.
type ScrewConfig struct {
	Motion string       `json:"motion" jsonschema:"enum=rotation,enum=translation"`
	Axis   VectorConfig `json:"axis"`
	Origin VectorConfig `json:"origin"`
}

// DHConfig is a revolute joint with Denavit-Hartenberg parameters. Angles are in degrees.
type DHConfig struct {
	A      float64 `json:"a"`
	D      float64 `json:"d"`
	Alpha  float64 `json:"alpha"`
	Offset float64 `json:"offset"`
}

// XYZConfig is a joint acting about or along one axis of the current frame, followed by a fixed translation.
type XYZConfig struct {
	Joint string  `json:"joint" jsonschema:"enum=RotX,enum=RotY,enum=RotZ,enum=InvRotX,enum=InvRotY,enum=InvRotZ,enum=TransX,enum=TransY,enum=TransZ,enum=InvTransX,enum=InvTransY,enum=InvTransZ"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// VectorConfig is a 3-vector.
type VectorConfig struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v VectorConfig) toR3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// Chain is a parsed chain description.
type Chain struct {
	Name string
	Poe  *PoeExpression
	// Limits are in radians for revolute joints and meters for prismatic ones.
	Limits   []referenceframe.Limit
	Strategy string
	// Config is the description the chain was parsed from.
	Config *ChainConfig
}

// UnmarshalChainJSON parses a chain description. name overrides the name in the data when non-empty.
func UnmarshalChainJSON(data []byte, name string) (*Chain, error) {
	if len(data) == 0 {
		return nil, ErrNoChainInformation
	}
	cfg := &ChainConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return cfg.ParseConfig(name)
}

// ParseChainFile reads a chain description from disk, expanding ${VAR} references from the environment.
func ParseChainFile(path, name string) (*Chain, error) {
	data, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read chain file %q", path)
	}
	return UnmarshalChainJSON(data, name)
}

// ChainFromAttributes builds a chain from a generic attribute map, such as one nested in a larger config.
func ChainFromAttributes(attributes map[string]interface{}) (*Chain, error) {
	var cfg ChainConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &cfg})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "cannot decode chain attributes")
	}
	return cfg.ParseConfig("")
}

// ChainSchema returns the JSON schema of a chain description.
func ChainSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&ChainConfig{})
}

// ParseConfig converts the description into a chain named name, or the configured name if name is empty.
func (cfg *ChainConfig) ParseConfig(name string) (*Chain, error) {
	if name == "" {
		name = cfg.Name
	}
	if len(cfg.Links) == 0 {
		return nil, errors.Errorf("chain %q has no links", name)
	}

	h0, err := matrixOrIdentity(cfg.H0, "H0")
	if err != nil {
		return nil, err
	}
	hn, err := matrixOrIdentity(cfg.HN, "HN")
	if err != nil {
		return nil, err
	}

	var poe *PoeExpression
	switch {
	case cfg.Links[0].Screw != nil:
		poe, err = screwLinks(cfg.Links, hn)
	default:
		poe, err = frameLinks(cfg.Links, hn)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "chain %q", name)
	}
	poe.ChangeBaseFrame(h0)

	limits, err := cfg.limits(poe.Motions())
	if err != nil {
		return nil, errors.Wrapf(err, "chain %q", name)
	}
	return &Chain{Name: name, Poe: poe, Limits: limits, Strategy: cfg.Strategy, Config: cfg}, nil
}

func matrixOrIdentity(m []float64, field string) (spatialmath.Pose, error) {
	if len(m) == 0 {
		return spatialmath.NewZeroPose(), nil
	}
	pose, err := spatialmath.NewPoseFromMatrix(m)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", field)
	}
	return pose, nil
}

func screwLinks(links []LinkConfig, tool spatialmath.Pose) (*PoeExpression, error) {
	poe := NewPoeExpression(tool)
	var err error
	for i, link := range links {
		if link.Screw == nil {
			err = multierr.Append(err, errors.Errorf("link %d: screw links cannot be mixed with dh or xyz links", i))
			continue
		}
		motion, mErr := ParseMotionType(link.Screw.Motion)
		if mErr != nil {
			err = multierr.Append(err, errors.Wrapf(mErr, "link %d", i))
			continue
		}
		exp, eErr := NewMatrixExponential(motion, link.Screw.Axis.toR3(), link.Screw.Origin.toR3())
		if eErr != nil {
			err = multierr.Append(err, errors.Wrapf(eErr, "link %d", i))
			continue
		}
		poe.Append(exp)
	}
	if err != nil {
		return nil, err
	}
	return poe, nil
}

// frameLinks accumulates segment frames at the zero configuration: each joint acts in the frame reached so far,
// then the segment's fixed tip frame is appended.
func frameLinks(links []LinkConfig, hn spatialmath.Pose) (*PoeExpression, error) {
	frame := spatialmath.NewZeroPose()
	var exps []MatrixExponential
	var err error
	for i, link := range links {
		var (
			motion MotionType
			local  r3.Vector
			tip    spatialmath.Pose
		)
		switch {
		case link.DH != nil:
			motion = Rotation
			local = r3.Vector{Z: 1}
			tip, err = dhFrame(*link.DH)
			if err != nil {
				return nil, errors.Wrapf(err, "link %d", i)
			}
		case link.XYZ != nil:
			var jErr error
			motion, local, jErr = xyzJoint(link.XYZ.Joint)
			if jErr != nil {
				return nil, errors.Wrapf(jErr, "link %d", i)
			}
			tip = spatialmath.NewPoseFromPoint(r3.Vector{X: link.XYZ.X, Y: link.XYZ.Y, Z: link.XYZ.Z})
		default:
			return nil, errors.Errorf("link %d: expected a dh or xyz link", i)
		}
		exps = append(exps, MatrixExponential{
			motion: motion,
			axis:   spatialmath.RotatePoint(frame, local).Normalize(),
			origin: frame.Point(),
		})
		frame = spatialmath.Compose(frame, tip)
	}

	poe := NewPoeExpression(spatialmath.Compose(frame, hn))
	for _, exp := range exps {
		poe.Append(exp)
	}
	return poe, nil
}

// dhFrame is Rz(offset) * Tz(d) * Tx(a) * Rx(alpha).
func dhFrame(dh DHConfig) (spatialmath.Pose, error) {
	m := mgl64.HomogRotate3DZ(utils.DegToRad(dh.Offset)).
		Mul4(mgl64.Translate3D(dh.A, 0, dh.D)).
		Mul4(mgl64.HomogRotate3DX(utils.DegToRad(dh.Alpha)))
	return spatialmath.NewPoseFromMat4(m)
}

func xyzJoint(name string) (MotionType, r3.Vector, error) {
	axes := map[byte]r3.Vector{'X': {X: 1}, 'Y': {Y: 1}, 'Z': {Z: 1}}
	motion, sign, rest := Rotation, 1.0, name
	if len(rest) > 3 && rest[:3] == "Inv" {
		sign, rest = -1, rest[3:]
	}
	switch {
	case len(rest) == 4 && rest[:3] == "Rot":
		motion = Rotation
	case len(rest) == 6 && rest[:5] == "Trans":
		motion = Translation
	default:
		return 0, r3.Vector{}, errors.Errorf("unknown joint type %q", name)
	}
	axis, ok := axes[rest[len(rest)-1]]
	if !ok {
		return 0, r3.Vector{}, errors.Errorf("unknown joint type %q", name)
	}
	return motion, axis.Mul(sign), nil
}

func (cfg *ChainConfig) limits(motions []MotionType) ([]referenceframe.Limit, error) {
	n := len(motions)
	limits := make([]referenceframe.Limit, n)
	if len(cfg.Mins) == 0 && len(cfg.Maxs) == 0 {
		for i := range limits {
			limits[i] = referenceframe.UnboundedLimit
		}
		return limits, nil
	}
	if len(cfg.Mins) != n || len(cfg.Maxs) != n {
		return nil, errors.Errorf("expected %d joint limits, got %d mins and %d maxs", n, len(cfg.Mins), len(cfg.Maxs))
	}
	for i, m := range motions {
		limits[i] = referenceframe.Limit{Min: cfg.Mins[i], Max: cfg.Maxs[i]}
		if m == Rotation {
			limits[i] = referenceframe.Limit{Min: utils.DegToRad(cfg.Mins[i]), Max: utils.DegToRad(cfg.Maxs[i])}
		}
	}
	if err := referenceframe.ValidateLimits(limits); err != nil {
		return nil, err
	}
	return limits, nil
}
