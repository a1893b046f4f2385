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

// tleLineLen is the fixed width of element lines 1 and 2.
const tleLineLen = 69

// Parse reads 3-line NORAD element groups (name, line 1, line 2) from r.
// Groups are consumed in a fixed stride of three lines; a group is accepted
// only when line 1 starts with "1 " and line 2 with "2 " after trimming.
// Malformed groups and a truncated trailing group are skipped with a warning,
// never an error. Empty input yields an empty slice.
func Parse(r io.Reader, logger *slog.Logger) ([]Satellite, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading element data: %w", err)
	}

	var sats []Satellite
	for i := 0; i+2 < len(lines); i += 3 {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed element group", "line_index", i, "name", name)
			continue
		}
		if len(line1) != tleLineLen || len(line2) != tleLineLen {
			logger.Warn("skipping element group with bad line length", "name", name)
			continue
		}

		// Catalog number from line 1 columns 3-7 (0-indexed: 2..7).
		catStr := strings.TrimSpace(line1[2:7])
		catalog, err := strconv.Atoi(catStr)
		if err != nil {
			logger.Warn("skipping element group with invalid catalog number", "catalog_str", catStr, "name", name)
			continue
		}

		// Epoch from line 1 columns 19-32 (0-indexed: 18..32).
		epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
		if err != nil {
			logger.Warn("skipping element group with invalid epoch", "name", name, "error", err)
			continue
		}

		sats = append(sats, Satellite{
			NORADID: catalog,
			Name:    name,
			Epoch:   epoch,
			Line1:   line1,
			Line2:   line2,
		})
	}

	return sats, nil
}

// parseEpoch converts a TLE epoch in YYDDD.DDDDDDDD form to time.Time.
// Two-digit years 00-56 map to the 2000s, 57-99 to the 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day 1 is January 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
