package resources

// DeepMerge merges override onto base: map values merge recursively, other
// values (including slices) are overwritten rather than concatenated.
// Grounded on original_source's runner.py _deep_merge_dict.
func DeepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				out[k] = DeepMerge(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// MergeDecode merges two decode specs, matching runner.py's _merge_decode:
// nested "config"/"options" bool-maps deep-merge; "*_paths" lists
// concatenate and de-dupe preserving order; everything else is override-wins.
func MergeDecode(profile, resource map[string]any) map[string]any {
	out := make(map[string]any, len(profile)+len(resource))
	for k, v := range profile {
		out[k] = v
	}
	for k, v := range resource {
		switch k {
		case "config", "options":
			if bm, ok := out[k].(map[string]any); ok {
				if om, ok := v.(map[string]any); ok {
					out[k] = DeepMerge(bm, om)
					continue
				}
			}
			out[k] = v
		case "config_paths", "options_paths":
			existing, _ := out[k].([]any)
			incoming, _ := v.([]any)
			merged := append(append([]any{}, existing...), incoming...)
			seen := map[string]bool{}
			deduped := make([]any, 0, len(merged))
			for _, item := range merged {
				s, ok := item.(string)
				if !ok || seen[s] {
					continue
				}
				seen[s] = true
				deduped = append(deduped, item)
			}
			out[k] = deduped
		default:
			if bm, ok := out[k].(map[string]any); ok {
				if om, ok := v.(map[string]any); ok {
					out[k] = DeepMerge(bm, om)
					continue
				}
			}
			out[k] = v
		}
	}
	return out
}
