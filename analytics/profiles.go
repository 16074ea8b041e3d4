package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"telemetry-peak-analyzer/models"
)

var ErrUnknownProfile = errors.New("unknown analyzer profile")

const DefaultGlobalTableAge = 7 * 24 * time.Hour

// DimensionMetadata carries what is known up front about a dimension: the
// values it can take and, per value, the minimum suggested threshold.
type DimensionMetadata struct {
	Values     []string
	Thresholds map[string]int
}

// Profile describes which telemetry fields an analyzer looks at.
type Profile struct {
	Name            string
	Index           models.Index
	Dimensions      [2]string
	CrossDimensions []string
	Metadata        map[string]DimensionMetadata
	// GlobalTableAge is how far back the baseline is rebuilt from the
	// backend when no persisted baseline exists.
	GlobalTableAge time.Duration
}

// DimensionThreshold returns the threshold floor for value, 0 if none.
func (p Profile) DimensionThreshold(dimension, value string) int {
	return p.Metadata[dimension].Thresholds[value]
}

func (p Profile) DimensionValues(dimension string) []string {
	return p.Metadata[dimension].Values
}

func (p Profile) dimensionsValues() map[string][]string {
	values := make(map[string][]string, len(p.Dimensions))
	for _, d := range p.Dimensions {
		values[d] = p.DimensionValues(d)
	}
	return values
}

// groupByDimensions is the dimension list sent to Backend.GroupBy: the
// grouping pair followed by the cross dimensions.
func (p Profile) groupByDimensions() []string {
	dims := make([]string, 0, 2+len(p.CrossDimensions))
	dims = append(dims, p.Dimensions[:]...)
	return append(dims, p.CrossDimensions...)
}

var FileTypeProfile = Profile{
	Name:            "file_type",
	Index:           models.Index{Timestamp: "utc_timestamp", Sample: "file.sha1"},
	Dimensions:      [2]string{"task.severity", "file.llfile_type"},
	CrossDimensions: []string{"source.user_id", "source.origin"},
	Metadata: map[string]DimensionMetadata{
		"task.severity": {
			Values: []string{"malicious", "benign"},
			Thresholds: map[string]int{
				"malicious": 90,
				"benign":    500,
			},
		},
	},
	GlobalTableAge: DefaultGlobalTableAge,
}

var NetworkTypeProfile = Profile{
	Name:            "network_type",
	Index:           models.Index{Timestamp: "utc_timestamp", Sample: "event.id"},
	Dimensions:      [2]string{"event.impact", "threat.name.keyword"},
	CrossDimensions: []string{"source.user_id"},
	Metadata: map[string]DimensionMetadata{
		"event.impact": {
			Values: []string{"70", "30"},
		},
	},
	GlobalTableAge: 3 * 24 * time.Hour,
}

var profiles = map[string]Profile{
	FileTypeProfile.Name:    FileTypeProfile,
	NetworkTypeProfile.Name: NetworkTypeProfile,
}

func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProfile, name, ProfileNames())
	}
	return p, nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
