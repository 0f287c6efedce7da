// Package classification implements the four classification methods
// spec.md §6 names by key (cache_count, cache_exact_address,
// int_threshold, int_pct_error), mapping one measurement plus the
// classifier config to an integer class id. Grounded in
// plumber/classification/classification_methods.py; the dispatch table
// itself follows that file's CLASSIFICATION_METHODS constant.
package classification

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/scy-phy/plumber-go/pkgs/codegen"
	"github.com/scy-phy/plumber-go/pkgs/config"
	"github.com/scy-phy/plumber-go/pkgs/measurement"
)

// Method classifies one measurement into an integer class id, reading
// whatever additional parameters it needs from its own
// [method_<name>] config section.
type Method func(m measurement.Measurement, cfg *config.Config) (int, error)

// Methods is the classification-method dispatch table, keyed by the
// classification_method config value.
var Methods = map[string]Method{
	"cache_count":         CacheCount,
	"cache_exact_address": CacheExactAddress,
	"int_threshold":       IntThreshold,
	"int_pct_error":       IntPctError,
}

// CacheCount returns the number of cache lines resident at the
// configured cache level, or 0 if that level produced no output for the
// experiment.
func CacheCount(m measurement.Measurement, cfg *config.Config) (int, error) {
	c, ok := m.(*measurement.Cache)
	if !ok {
		return 0, fmt.Errorf("classification: cache_count requires a cache measurement")
	}
	level, err := cfg.GetIntOrError("method_cache_count", "cache_level")
	if err != nil {
		return 0, err
	}
	return len(c.Contents[level]), nil
}

// CacheExactAddress returns 1 if the address held in the configured
// register-contents index (registers sorted by their numeric suffix)
// maps to a set/tag pair present in the configured cache level's dump,
// else 0.
func CacheExactAddress(m measurement.Measurement, cfg *config.Config) (int, error) {
	c, ok := m.(*measurement.Cache)
	if !ok {
		return 0, fmt.Errorf("classification: cache_exact_address requires a cache measurement")
	}
	arch, err := cfg.GetStringOrError(config.SectionGeneral, config.KeyCPUArchitecture)
	if err != nil {
		return 0, err
	}
	target, err := codegen.TargetForArchitecture(arch)
	if err != nil {
		return 0, err
	}
	level, err := cfg.GetIntOrError("method_cache_exact_address", "cache_level")
	if err != nil {
		return 0, err
	}
	index, err := cfg.GetIntOrError("method_cache_exact_address", "expected_address_index")
	if err != nil {
		return 0, err
	}

	regs, err := m.RegisterContents()
	if err != nil {
		return 0, err
	}
	sorted := sortedRegisterValues(regs)
	if index < 0 || index >= len(sorted) {
		return 0, nil
	}
	expectedAddr := sorted[index]
	expectedSet := int((expectedAddr >> uint(target.OffsetBits())) & ((1 << uint(target.SetBits())) - 1))
	expectedTag := expectedAddr >> uint(target.OffsetBits()+target.SetBits())

	for _, st := range c.Contents[level] {
		if st.Set == expectedSet && st.Tag == expectedTag {
			return 1, nil
		}
	}
	return 0, nil
}

// IntThreshold returns 1/0 from comparing an integer measurement
// against a configured threshold using one of lt/le/eq/ge/gt/ne.
func IntThreshold(m measurement.Measurement, cfg *config.Config) (int, error) {
	iv, ok := m.(*measurement.Int)
	if !ok {
		return 0, fmt.Errorf("classification: int_threshold requires an integer measurement")
	}
	threshold, err := cfg.GetIntOrError("method_int_threshold", "threshold")
	if err != nil {
		return 0, err
	}
	relation, err := cfg.GetStringOrError("method_int_threshold", "relation")
	if err != nil {
		return 0, err
	}
	var satisfied bool
	switch relation {
	case "lt":
		satisfied = iv.Value < threshold
	case "le":
		satisfied = iv.Value <= threshold
	case "eq":
		satisfied = iv.Value == threshold
	case "ge":
		satisfied = iv.Value >= threshold
	case "gt":
		satisfied = iv.Value > threshold
	case "ne":
		satisfied = iv.Value != threshold
	default:
		return 0, fmt.Errorf("classification: int_threshold: invalid relation %q", relation)
	}
	if satisfied {
		return 1, nil
	}
	return 0, nil
}

// IntPctError buckets an integer-percentage measurement (0-100) into
// fixed-width buckets named by their middle element:
// value/bucket_size*bucket_size + bucket_size/2.
func IntPctError(m measurement.Measurement, cfg *config.Config) (int, error) {
	iv, ok := m.(*measurement.Int)
	if !ok {
		return 0, fmt.Errorf("classification: int_pct_error requires an integer measurement")
	}
	if iv.Value < 0 || iv.Value > 100 {
		return 0, fmt.Errorf("classification: int_pct_error: value %d out of [0,100]", iv.Value)
	}
	bucketSize, err := cfg.GetIntOrError("method_int_pct_error", "bucket_size")
	if err != nil {
		return 0, err
	}
	return (iv.Value/bucketSize)*bucketSize + bucketSize/2, nil
}

// sortedRegisterValues returns reg values ordered by the numeric suffix
// of each register name (e.g. "x2" < "x10"), matching
// classification_methods.py's `sorted(..., key=lambda x: int(x[0][1:]))`.
func sortedRegisterValues(regs map[string]uint64) []uint64 {
	names := make([]string, 0, len(regs))
	for name := range regs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return registerSuffix(names[i]) < registerSuffix(names[j])
	})
	out := make([]uint64, len(names))
	for i, name := range names {
		out[i] = regs[name]
	}
	return out
}

func registerSuffix(name string) int {
	if len(name) < 2 {
		return 0
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil {
		return 0
	}
	return n
}
