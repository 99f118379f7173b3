package xact

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Speed of sound in world units per second.
const speedOfSound = 343.5

// Reserved instance variables filled in by Apply3D.
const (
	varDistance         = "Distance"
	varOrientationAngle = "OrientationAngle"
	varDopplerPitch     = "DopplerPitchScalar"
)

// Listener is the point of view 3D cues are rendered from.
type Listener struct {
	Position mgl32.Vec3
	Forward  mgl32.Vec3
	Up       mgl32.Vec3
	Velocity mgl32.Vec3
}

// NewListener returns a listener at the origin facing -Z.
func NewListener() Listener {
	return Listener{
		Forward: mgl32.Vec3{0, 0, -1},
		Up:      mgl32.Vec3{0, 1, 0},
	}
}

// Emitter is the position and motion of a 3D cue.
type Emitter struct {
	Position     mgl32.Vec3
	Forward      mgl32.Vec3
	Up           mgl32.Vec3
	Velocity     mgl32.Vec3
	DopplerScale float32
}

// NewEmitter returns a stationary emitter at the origin.
func NewEmitter() Emitter {
	return Emitter{
		Forward:      mgl32.Vec3{0, 0, 1},
		Up:           mgl32.Vec3{0, 1, 0},
		DopplerScale: 1,
	}
}

type positional struct {
	distance float64
	// Degrees between the listener's forward axis and the emitter.
	angle   float64
	pan     float64
	doppler float64
}

func compute3D(l Listener, e Emitter) positional {
	p := positional{doppler: 1}

	diff := e.Position.Sub(l.Position)
	dist := diff.Len()
	p.distance = float64(dist)
	if dist == 0 {
		return p
	}
	dir := diff.Mul(1 / dist)

	if right := l.Forward.Cross(l.Up); right.Len() > 0 {
		p.pan = clampUnit(float64(dir.Dot(right.Normalize())))
	}
	if l.Forward.Len() > 0 {
		cos := clampUnit(float64(dir.Dot(l.Forward.Normalize())))
		p.angle = math.Acos(cos) * 180 / math.Pi
	}

	// Positive speeds close the gap.
	vl := float64(l.Velocity.Dot(dir))
	ve := -float64(e.Velocity.Dot(dir)) * float64(e.DopplerScale)
	if ve > speedOfSound*0.99 {
		ve = speedOfSound * 0.99
	}
	if vl < -speedOfSound*0.99 {
		vl = -speedOfSound * 0.99
	}
	p.doppler = (speedOfSound + vl) / (speedOfSound - ve)
	return p
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
