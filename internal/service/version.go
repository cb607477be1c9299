package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxVersionComponent bounds each of minor and patch. Larger values would
// overflow into the next position of the build number and corrupt ordering.
const MaxVersionComponent = 99

// MaxBuildNumber is the largest build number the updates table can hold.
const MaxBuildNumber = math.MaxInt32

// MaxMajorVersion keeps major*10000 + 9999 within MaxBuildNumber.
const MaxMajorVersion = (MaxBuildNumber - 9999) / 10000

// VersionToBuildNumber maps "major.minor.patch" to major*10000 + minor*100 + patch.
// Missing components count as 0 and a leading "v" is ignored. This is an
// ordering heuristic, not a semantic version comparison: "1.2" and "1.2.0"
// produce the same number.
func VersionToBuildNumber(version string) (int, error) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if v == "" {
		return 0, fmt.Errorf("%w: empty version", ErrInvalidInput)
	}

	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: version %q has more than three components", ErrInvalidInput, version)
	}

	weights := [3]int{10000, 100, 1}
	build := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: version %q has a non-numeric component", ErrInvalidInput, version)
		}
		limit := MaxVersionComponent
		if i == 0 {
			limit = MaxMajorVersion
		}
		if n > limit {
			return 0, fmt.Errorf("%w: version %q component %d exceeds %d", ErrInvalidInput, version, n, limit)
		}
		build += n * weights[i]
	}
	return build, nil
}
