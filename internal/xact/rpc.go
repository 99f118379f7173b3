package xact

// RPCParameter is the sound property an RPC curve drives.
type RPCParameter uint16

const (
	ParamVolume RPCParameter = iota
	ParamPitch
	ParamReverbSend
	ParamFilterFrequency
	ParamFilterQFactor
)

func (p RPCParameter) String() string {
	switch p {
	case ParamVolume:
		return "Volume"
	case ParamPitch:
		return "Pitch"
	case ParamReverbSend:
		return "ReverbSend"
	case ParamFilterFrequency:
		return "FilterFrequency"
	case ParamFilterQFactor:
		return "FilterQFactor"
	default:
		return "Unknown"
	}
}

// RPCPointType is the authored curve shape between two points. Only
// linear segments are evaluated.
type RPCPointType uint8

const (
	PointLinear RPCPointType = iota
	PointFast
	PointSlow
	PointSinCos
)

type RPCPoint struct {
	X, Y float64
	Type RPCPointType
}

// RPC maps a variable's value to an offset on one parameter. Sounds refer
// to curves by the curve's byte offset in the settings file.
type RPC struct {
	Code      uint32
	Variable  string
	Parameter RPCParameter
	Points    []RPCPoint
}

// Evaluate returns the clamped curve value at x.
func (r *RPC) Evaluate(x float64) float64 {
	return EvaluateRPC(r.Points, x)
}

// DSPParameter is one effect parameter with its bounds.
type DSPParameter struct {
	Type  uint8
	Value float64
	Min   float64
	Max   float64
}

// DSPPreset groups a contiguous run of parameters.
type DSPPreset struct {
	Code       uint32
	IsGlobal   bool
	Parameters []DSPParameter
}
