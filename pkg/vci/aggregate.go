package vci

import (
	"fmt"
	"sort"
	"strings"

	"github.com/project-spencer/orbit/pkg/history"
)

// MissingRegionError reports a region of the current run that a snapshot
// does not list.
type MissingRegionError struct {
	Region   string
	Snapshot string
}

func (e *MissingRegionError) Error() string {
	return fmt.Sprintf("region %s missing from snapshot %s", e.Region, e.Snapshot)
}

// MissingPolicy decides what happens to a region absent from a snapshot.
type MissingPolicy int

const (
	// FailOnMissing aborts the aggregation with a *MissingRegionError.
	FailOnMissing MissingPolicy = iota
	// SkipMissing leaves the region out of the results.
	SkipMissing
)

func ParsePolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(s) {
	case "fail", "":
		return FailOnMissing, nil
	case "skip":
		return SkipMissing, nil
	}
	return 0, fmt.Errorf("unknown missing region policy %q", s)
}

// RegionKey strips a fixed-length prefix, usually the survivor directory,
// from an image path.
func RegionKey(path string, prefixLen int) string {
	if prefixLen <= 0 {
		return path
	}
	if prefixLen >= len(path) {
		return ""
	}
	return path[prefixLen:]
}

// BuildHistory returns, per region of current, the snapshot values in order
// followed by the current value.
func BuildHistory(current map[string]float64, snapshots []history.Snapshot, policy MissingPolicy) (map[string][]float64, []string, error) {
	regions := make([]string, 0, len(current))
	for r := range current {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	hist := make(map[string][]float64, len(current))
	var skipped []string

regions:
	for _, r := range regions {
		h := make([]float64, 0, len(snapshots)+1)

		for _, s := range snapshots {
			v, ok := s.Values[r]
			if !ok {
				if policy == SkipMissing {
					skipped = append(skipped, r)
					continue regions
				}
				return nil, nil, &MissingRegionError{Region: r, Snapshot: s.Name}
			}
			h = append(h, v)
		}

		hist[r] = append(h, current[r])
	}

	return hist, skipped, nil
}

type Aggregation struct {
	History map[string][]float64
	Results []Result
	Skipped []string
}

// Aggregate builds the history of every current region and evaluates it.
// The first region whose VCI cannot be computed aborts the aggregation.
func Aggregate(current map[string]float64, snapshots []history.Snapshot, policy MissingPolicy) (*Aggregation, error) {
	hist, skipped, err := BuildHistory(current, snapshots, policy)

	if err != nil {
		return nil, err
	}

	regions := make([]string, 0, len(hist))
	for r := range hist {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	a := &Aggregation{History: hist, Skipped: skipped}

	for _, r := range regions {
		res, err := Evaluate(r, hist[r])
		if err != nil {
			return nil, err
		}
		a.Results = append(a.Results, res)
	}

	return a, nil
}
