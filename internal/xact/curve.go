package xact

import (
	"math"
)

// Fitted curve mapping authored volume bytes to decibels. The constants
// are calibration data; keep them as they are.
const (
	volumeFloorDB  = -96.0
	volumeCeilDB   = 67.7385212334047
	volumeExponent = 0.432254984608615
	volumeScale    = 80.1748600297963
)

// DecodeVolumeByte converts an authored volume byte to a linear gain.
// 0xB4 is roughly unity.
func DecodeVolumeByte(b byte) float64 {
	db := (volumeFloorDB-volumeCeilDB)/(1+math.Pow(float64(b)/volumeScale, volumeExponent)) + volumeCeilDB
	return math.Sqrt(math.Pow(10, db/10))
}

// RPC output range.
const (
	rpcMin = -10000
	rpcMax = 10000
)

// EvaluateRPC evaluates a curve at x. Points must be sorted by X.
func EvaluateRPC(points []RPCPoint, x float64) float64 {
	if len(points) == 0 {
		return 0
	}
	first, last := points[0], points[len(points)-1]

	var y float64
	switch {
	case x == 0 && first.X == 0:
		y = first.Y
	case x <= first.X:
		y = first.Y / (x / first.X)
	case x >= last.X:
		y = last.Y / (last.X / x)
	default:
		for i := 0; i < len(points)-1; i++ {
			a, b := points[i], points[i+1]
			if a.X <= x && x <= b.X {
				y = a.Y + (x-a.X)*(b.Y-a.Y)/(b.X-a.X)
				break
			}
		}
	}

	if math.IsNaN(y) {
		return 0
	}
	return math.Max(rpcMin, math.Min(rpcMax, y))
}

// rpcGain turns a volume RPC result into a multiplicative factor.
func rpcGain(r float64) float64 {
	return 1 + r/10000
}
