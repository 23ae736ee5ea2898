package imagegen

import (
	"encoding/json"
)

// NormalizeJSON decodes raw and normalizes it. Undecodable input yields an
// empty batch.
func NormalizeJSON(raw []byte) Batch {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Batch{}
	}
	return Normalize(v)
}

// Normalize maps a decoded upstream response onto an ordered batch of
// descriptors. Shapes are tried in order and the first match wins:
//
//  1. data is a list whose first entry is a string
//  2. data is a list whose first entry is an object holding an images list (flattened)
//  3. data is any other list, including an empty one
//  4. images is a list
//  5. data is an object holding an images list
//  6. url, b64_json or base64Data set at the top level
//
// Anything else yields an empty batch. The input is never modified and the
// result shares no memory with it.
func Normalize(raw any) Batch {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Batch{}
	}

	if data, ok := obj["data"].([]any); ok {
		if len(data) > 0 {
			if first, ok := data[0].(map[string]any); ok {
				if _, nested := first["images"].([]any); nested {
					return flattenNested(data)
				}
			}
		}
		return mapEntries(data)
	}

	if images, ok := obj["images"].([]any); ok {
		return mapEntries(images)
	}

	if data, ok := obj["data"].(map[string]any); ok {
		if images, ok := data["images"].([]any); ok {
			return mapEntries(images)
		}
	}

	if d := descriptorFromObject(obj); d.Valid() {
		return Batch{d}
	}
	return Batch{}
}

// flattenNested expands the images list of every element in order.
// Elements without an images list contribute nothing.
func flattenNested(data []any) Batch {
	out := Batch{}
	for _, el := range data {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if images, ok := obj["images"].([]any); ok {
			out = append(out, mapEntries(images)...)
		}
	}
	return out
}

// mapEntries wraps strings as URL descriptors and passes objects through.
// Other JSON values are skipped.
func mapEntries(entries []any) Batch {
	out := make(Batch, 0, len(entries))
	for _, e := range entries {
		switch v := e.(type) {
		case string:
			out = append(out, Descriptor{URL: v})
		case map[string]any:
			out = append(out, descriptorFromObject(v))
		}
	}
	return out
}

// descriptorFromObject reads the URL form first, then the inline forms under
// the field names providers are known to use.
func descriptorFromObject(obj map[string]any) Descriptor {
	if u, ok := obj["url"].(string); ok && u != "" {
		return Descriptor{URL: u}
	}
	for _, key := range []string{"b64_json", "base64Data", "base64_data"} {
		if b, ok := obj[key].(string); ok && b != "" {
			return Descriptor{B64JSON: b}
		}
	}
	return Descriptor{}
}
