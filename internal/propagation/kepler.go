package propagation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/transform"
)

// Kepler is an unperturbed two-body model. It ignores drag and the Earth's
// oblateness, so positions drift from SGP4 by kilometres per day in LEO.
type Kepler struct{}

// Name implements Capability.
func (Kepler) Name() string { return "kepler" }

// Initialize implements Capability.
func (Kepler) Initialize(el Elements, epoch time.Time) (Handle, error) {
	if epoch.IsZero() {
		return nil, errors.New("epoch is required")
	}
	if el.MeanMotion <= 0 {
		return nil, fmt.Errorf("mean motion %g rad/min must be positive", el.MeanMotion)
	}
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return nil, fmt.Errorf("eccentricity %g out of range [0,1)", el.Eccentricity)
	}

	n := el.MeanMotion / 60.0 // rad/s
	a := math.Cbrt(transform.EarthMu / (n * n))

	sO, cO := math.Sincos(el.RAAN)
	sw, cw := math.Sincos(el.ArgPerigee)
	si, ci := math.Sincos(el.Inclination)

	return &keplerHandle{
		el:    el,
		epoch: epoch.UTC(),
		n:     n,
		a:     a,
		p: [3]float64{
			cO*cw - sO*sw*ci,
			sO*cw + cO*sw*ci,
			sw * si,
		},
		q: [3]float64{
			-cO*sw - sO*cw*ci,
			-sO*sw + cO*cw*ci,
			cw * si,
		},
	}, nil
}

// InitializeTLE implements Capability.
func (k Kepler) InitializeTLE(line1, line2 string) (Handle, error) {
	el, epoch, err := elementsFromLines(line1, line2)
	if err != nil {
		return nil, err
	}
	return k.Initialize(el, epoch)
}

type keplerHandle struct {
	el    Elements
	epoch time.Time
	n     float64    // rad/s
	a     float64    // km
	p, q  [3]float64 // perifocal basis in the inertial frame
}

func (h *keplerHandle) Epoch() time.Time { return h.epoch }

func (h *keplerHandle) Evaluate(t time.Time) (transform.PositionTEME, error) {
	dt := t.Sub(h.epoch).Seconds()
	e := h.el.Eccentricity

	E := eccentricAnomaly(h.el.MeanAnomaly+h.n*dt, e)
	sE, cE := math.Sincos(E)
	root := math.Sqrt(1 - e*e)

	x := h.a * (cE - e)
	y := h.a * root * sE
	r := h.a * (1 - e*cE)
	vf := math.Sqrt(transform.EarthMu*h.a) / r
	vx := -vf * sE
	vy := vf * root * cE

	return transform.PositionTEME{
		X:  x*h.p[0] + y*h.q[0],
		Y:  x*h.p[1] + y*h.q[1],
		Z:  x*h.p[2] + y*h.q[2],
		VX: vx*h.p[0] + vy*h.q[0],
		VY: vx*h.p[1] + vy*h.q[1],
		VZ: vx*h.p[2] + vy*h.q[2],
	}, nil
}

// eccentricAnomaly solves Kepler's equation by Newton-Raphson.
func eccentricAnomaly(meanAnomaly, e float64) float64 {
	M := math.Mod(meanAnomaly, 2*math.Pi)
	if M < 0 {
		M += 2 * math.Pi
	}
	if e == 0 {
		return M
	}

	E := M
	if e >= 0.8 {
		if M < math.Pi {
			E = M + e/2
		} else {
			E = M - e/2
		}
	}
	for i := 0; i < 50; i++ {
		delta := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}
	return E
}
