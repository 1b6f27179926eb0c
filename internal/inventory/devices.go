package inventory

import (
	"errors"
	"fmt"

	"github.com/cwbudde/clinventory/internal/cl"
)

// ListDevices returns up to maxEntries devices of category on platform, and
// the runtime's true count. maxEntries <= 0 means no limit. A category with no
// devices is not an error.
func ListDevices(rt cl.Runtime, platform cl.PlatformID, category cl.Category, maxEntries int) ([]cl.DeviceID, int, error) {
	total, err := rt.GetDeviceIDs(platform, category, nil)
	if errors.Is(err, cl.DeviceNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("count %s devices: %w", category, err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	want := total
	if maxEntries > 0 {
		want = min(total, maxEntries)
	}

	// The list call must have room for every device; the caller's limit
	// is applied afterwards.
	ids := make([]cl.DeviceID, total)
	if _, err := rt.GetDeviceIDs(platform, category, ids); err != nil {
		return nil, 0, fmt.Errorf("list %s devices: %w", category, err)
	}
	return ids[:want], total, nil
}

// CountDevices reports how many devices of category platform exposes.
func CountDevices(rt cl.Runtime, platform cl.PlatformID, category cl.Category) (int, error) {
	_, total, err := ListDevices(rt, platform, category, 1)
	return total, err
}
