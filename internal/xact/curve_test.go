package xact

import (
	"math"
	"testing"
)

func TestDecodeVolumeByteMonotonic(t *testing.T) {
	prev := DecodeVolumeByte(0)
	for b := 1; b <= 255; b++ {
		v := DecodeVolumeByte(byte(b))
		if v < prev {
			t.Fatalf("DecodeVolumeByte(%d) = %v < DecodeVolumeByte(%d) = %v", b, v, b-1, prev)
		}
		prev = v
	}
}

func TestDecodeVolumeByteCalibration(t *testing.T) {
	if got := DecodeVolumeByte(0xB4); math.Abs(got-1) > 0.01 {
		t.Errorf("DecodeVolumeByte(0xB4) = %v, want about 1", got)
	}
	// Byte 0 sits on the -96 dB floor.
	if got, want := DecodeVolumeByte(0), math.Pow(10, -96.0/20); math.Abs(got-want) > 1e-9 {
		t.Errorf("DecodeVolumeByte(0) = %v, want %v", got, want)
	}
	if got := DecodeVolumeByte(0xFF); got <= 1 {
		t.Errorf("DecodeVolumeByte(0xFF) = %v, want above unity", got)
	}
}

func TestEvaluateRPC(t *testing.T) {
	points := []RPCPoint{{X: 1, Y: 100}, {X: 3, Y: 300}, {X: 5, Y: -200}}

	tests := []struct {
		name   string
		points []RPCPoint
		x      float64
		want   float64
	}{
		{"empty", nil, 3, 0},
		{"interior", points, 2, 200},
		{"second segment", points, 4, 50},
		{"first knot", points, 1, 100},
		{"last knot", points, 5, -200},
		{"below first", points, 0.5, 200},
		{"above last", points, 10, -400},
		{"zero at zero", []RPCPoint{{X: 0, Y: 42}, {X: 1, Y: 0}}, 0, 42},
		{"nan", []RPCPoint{{X: 5, Y: 0}, {X: 6, Y: 1}}, 0, 0},
		{"clamped high", []RPCPoint{{X: 1, Y: 5000}, {X: 2, Y: 6000}}, 1000, rpcMax},
		{"clamped low", []RPCPoint{{X: 1, Y: -5000}, {X: 2, Y: -6000}}, 0.0001, rpcMin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateRPC(tt.points, tt.x); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EvaluateRPC(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestEvaluateRPCContinuousAtKnots(t *testing.T) {
	points := []RPCPoint{{X: 0.5, Y: -1200}, {X: 2, Y: 800}, {X: 7, Y: 800}, {X: 9, Y: 9000}}
	const eps = 1e-7
	for _, p := range points[1 : len(points)-1] {
		left := EvaluateRPC(points, p.X-eps)
		right := EvaluateRPC(points, p.X+eps)
		at := EvaluateRPC(points, p.X)
		if math.Abs(left-p.Y) > 1e-2 || math.Abs(right-p.Y) > 1e-2 || math.Abs(at-p.Y) > 1e-9 {
			t.Errorf("knot %v: left %v at %v right %v", p, left, at, right)
		}
	}
}

func TestEvaluateRPCAlwaysClamped(t *testing.T) {
	points := []RPCPoint{{X: 0.001, Y: 9999}, {X: 0.002, Y: -9999}}
	for _, x := range []float64{-1e9, -1, 1e-12, 0.0015, 1, 1e9} {
		if got := EvaluateRPC(points, x); got < rpcMin || got > rpcMax {
			t.Errorf("EvaluateRPC(%v) = %v outside range", x, got)
		}
	}
}

func TestRPCGain(t *testing.T) {
	if got := rpcGain(-2500); got != 0.75 {
		t.Errorf("rpcGain(-2500) = %v, want 0.75", got)
	}
	if got := rpcGain(0); got != 1 {
		t.Errorf("rpcGain(0) = %v, want 1", got)
	}
}
