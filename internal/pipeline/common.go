// Package pipeline runs one observation: acquire a frame, find markers,
// crop patches, classify, update the tracked state and notify.
package pipeline

import (
	"strconv"

	"applimon/internal/patch"
)

const component = "Pipeline"

// label names a patch in artifacts and logs: its configured name, or the
// marker id when it has none.
func label(p *patch.Patch) string {
	if p.Name != "" {
		return p.Name
	}
	return strconv.Itoa(p.MarkerID)
}

func with(base map[string]interface{}, kv ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(base)+len(kv)/2)
	for k, v := range base {
		fields[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return fields
}
