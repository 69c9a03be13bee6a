package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// LineLength is the fixed width of a two-line element line.
const LineLength = 69

// Parse reads NORAD TLE text from r and returns parsed records. Both the
// 3-line form (name line first) and bare 2-line sets are accepted.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var records []Record
	for i := 0; i+1 < len(lines); {
		name := ""
		line1, line2 := lines[i], lines[i+1]
		width := 2

		if !strings.HasPrefix(line1, "1 ") {
			if i+2 >= len(lines) {
				break
			}
			name = strings.TrimSpace(strings.TrimPrefix(lines[i], "0 "))
			line1, line2 = lines[i+1], lines[i+2]
			width = 3
		}

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		rec, err := ParseLines(line1, line2)
		if err != nil {
			logger.Warn("skipping unparsable TLE entry", "line_index", i, "name", name, "error", err)
			i += width
			continue
		}
		rec.Name = name
		records = append(records, rec)
		i += width
	}

	return records, nil
}

// ValidateLines performs the fixed-format checks every consumer of raw
// two-line text relies on: width, line numbers and matching catalog numbers.
func ValidateLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != LineLength {
		return fmt.Errorf("line1 length %d, expected %d", len(line1), LineLength)
	}
	if len(line2) != LineLength {
		return fmt.Errorf("line2 length %d, expected %d", len(line2), LineLength)
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return fmt.Errorf("catalog number mismatch: %q vs %q", line1[2:7], line2[2:7])
	}
	return nil
}

// ParseLines decodes one two-line element set into a Record carrying both
// the discrete elements and the original lines.
func ParseLines(line1, line2 string) (Record, error) {
	if err := ValidateLines(line1, line2); err != nil {
		return Record{}, err
	}
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	id, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return Record{}, fmt.Errorf("invalid catalog number %q: %w", line1[2:7], err)
	}

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return Record{}, err
	}

	bstar, err := parseImpliedExp(line1[53:61])
	if err != nil {
		return Record{}, fmt.Errorf("invalid bstar %q: %w", line1[53:61], err)
	}

	rec := Record{
		CatalogID: id,
		Epoch:     epoch,
		BStar:     bstar,
		Line1:     line1,
		Line2:     line2,
	}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"inclination", line2[8:16], &rec.Inclination},
		{"raan", line2[17:25], &rec.RAAN},
		{"eccentricity", "." + line2[26:33], &rec.Eccentricity},
		{"arg_perigee", line2[34:42], &rec.ArgPerigee},
		{"mean_anomaly", line2[43:51], &rec.MeanAnomaly},
		{"mean_motion", line2[52:63], &rec.MeanMotion},
	}

	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}

	return rec, nil
}

// parseImpliedExp decodes the TLE "assumed decimal point" exponent notation,
// e.g. " 10270-3" = 0.10270e-3.
func parseImpliedExp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 3 {
		return 0, fmt.Errorf("field too short")
	}
	mantissa, exp := s[:len(s)-2], s[len(s)-2:]
	v, err := strconv.ParseFloat("0."+mantissa+"e"+exp, 64)
	if err != nil {
		return 0, err
	}
	return sign * v, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	dur := time.Duration((dayOfYear - 1) * float64(24*time.Hour))
	return t.Add(dur), nil
}
