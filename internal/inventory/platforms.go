package inventory

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/metrics"
)

// ErrNoPlatforms wraps a failure of the platform discovery call itself.
var ErrNoPlatforms = errors.New("platform discovery failed")

// Platform is a discovered platform with its descriptive strings.
type Platform struct {
	ID      cl.PlatformID
	Index   int
	Name    string
	Vendor  string
	Version string
	Profile string
}

// Label names the platform in reports and logs.
func (p Platform) Label() string {
	if p.Name == "" {
		return fmt.Sprintf("platform %d", p.Index)
	}
	return p.Name
}

// ListPlatforms discovers every platform. An installation without platforms
// yields an empty slice and a nil error. Only a failed discovery call is an
// error; descriptive strings that cannot be read are logged and left empty.
func ListPlatforms(rt cl.Runtime) ([]Platform, error) {
	count, err := rt.GetPlatformIDs(nil)
	if errors.Is(err, cl.PlatformNotFoundKHR) {
		return []Platform{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoPlatforms, err)
	}
	if count == 0 {
		return []Platform{}, nil
	}

	ids := make([]cl.PlatformID, count)
	got, err := rt.GetPlatformIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoPlatforms, err)
	}
	ids = ids[:min(got, count)]

	platforms := make([]Platform, 0, len(ids))
	for i, id := range ids {
		p := Platform{ID: id, Index: i}
		fields := []struct {
			key  cl.PlatformKey
			name string
			dst  *string
		}{
			{cl.PlatformName, "Platform name", &p.Name},
			{cl.PlatformVendor, "Platform vendor", &p.Vendor},
			{cl.PlatformVersion, "Platform version", &p.Version},
			{cl.PlatformProfile, "Platform profile", &p.Profile},
		}
		// A failed string read leaves the field empty; Label covers the name.
		for _, f := range fields {
			text, err := platformText(rt, id, f.key)
			if err != nil {
				log.Warn().Err(err).Int("platform", i).Str("property", f.name).Msg("Platform read failed")
				metrics.CapabilityReadErrors.WithLabelValues(f.name).Inc()
				continue
			}
			*f.dst = text
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}
