package tle

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Encode renders the discrete elements of rec as canonical two-line text.
// The first and second derivatives of mean motion are written as zero; they
// are not used by SGP4. The catalog number field is five digits wide, so
// larger IDs are folded into it; it labels the set and has no effect on
// propagation.
func Encode(rec Record) (string, string, error) {
	if rec.Epoch.IsZero() {
		return "", "", errors.New("epoch is required")
	}
	if rec.Eccentricity < 0 || rec.Eccentricity >= 1 {
		return "", "", fmt.Errorf("eccentricity %g out of range [0,1)", rec.Eccentricity)
	}
	if rec.MeanMotion <= 0 || rec.MeanMotion >= 100 {
		return "", "", fmt.Errorf("mean motion %g rev/day out of range", rec.MeanMotion)
	}
	if rec.Inclination < 0 || rec.Inclination > 180 {
		return "", "", fmt.Errorf("inclination %g out of range [0,180]", rec.Inclination)
	}

	bstar, err := formatImpliedExp(rec.BStar)
	if err != nil {
		return "", "", fmt.Errorf("bstar: %w", err)
	}

	id := rec.CatalogID % 100000
	if id < 0 {
		id = -id
	}

	epoch := rec.Epoch.UTC()
	midnight := time.Date(epoch.Year(), epoch.Month(), epoch.Day(), 0, 0, 0, 0, time.UTC)
	day := float64(epoch.YearDay()) + epoch.Sub(midnight).Hours()/24

	line1 := fmt.Sprintf("1 %05dU %-8s %02d%012.8f %s %s %s 0 %4d",
		id, "", epoch.Year()%100, day, " .00000000", " 00000-0", bstar, 999)

	ecc := int(math.Round(rec.Eccentricity * 1e7))
	if ecc > 9999999 {
		ecc = 9999999
	}
	line2 := fmt.Sprintf("2 %05d %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		id,
		rec.Inclination,
		wrapDegrees(rec.RAAN),
		ecc,
		wrapDegrees(rec.ArgPerigee),
		wrapDegrees(rec.MeanAnomaly),
		rec.MeanMotion,
		0,
	)

	line1 += string(rune('0' + Checksum(line1)))
	line2 += string(rune('0' + Checksum(line2)))

	if len(line1) != LineLength || len(line2) != LineLength {
		return "", "", fmt.Errorf("encoded line widths %d/%d", len(line1), len(line2))
	}
	return line1, line2, nil
}

// Checksum computes the modulo-10 checksum over the first 68 columns of a
// TLE line: digits count their value, minus signs count one.
func Checksum(line string) int {
	if len(line) > LineLength-1 {
		line = line[:LineLength-1]
	}
	sum := 0
	for _, c := range line {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// formatImpliedExp writes v in the 8-column assumed-decimal exponent form.
func formatImpliedExp(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("non-finite value %g", v)
	}
	if v == 0 {
		return " 00000-0", nil
	}
	sign := " "
	if v < 0 {
		sign = "-"
		v = -v
	}

	exp := int(math.Floor(math.Log10(v))) + 1
	mantissa := int(math.Round(v / math.Pow(10, float64(exp)) * 1e5))
	if mantissa >= 100000 {
		mantissa /= 10
		exp++
	}
	if exp < -9 {
		return " 00000-0", nil
	}
	if exp > 9 {
		return "", fmt.Errorf("value %g too large", v)
	}

	expSign := "+"
	if exp < 0 {
		expSign = "-"
		exp = -exp
	}
	return fmt.Sprintf("%s%05d%s%d", sign, mantissa, expSign, exp), nil
}

func wrapDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	// %8.4f would print 360.0000 for values just under 360.
	if d >= 359.99995 {
		d = 0
	}
	return d
}
