package eventlogger

import (
	"fmt"
	"strconv"
)

type FlattenOptions struct {
	MaxDepth int
	MaxKeys  int
}

// FlattenInfo turns free-form, possibly nested values into the flat string map
// carried in Event.Info. Nested keys are joined with "." and list indexes use
// "[i]". Output is capped by MaxDepth and MaxKeys.
func FlattenInfo(value map[string]any, opts FlattenOptions) map[string]string {
	if len(value) == 0 {
		return nil
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 8
	}
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = 256
	}

	out := make(map[string]string)
	flattenInto(out, "", value, 0, opts)
	return out
}

func flattenInto(out map[string]string, prefix string, value any, depth int, opts FlattenOptions) {
	if len(out) >= opts.MaxKeys {
		return
	}
	if depth > opts.MaxDepth {
		if prefix != "" {
			out[prefix] = fmt.Sprintf("<max_depth:%d>", opts.MaxDepth)
		}
		return
	}

	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, child, depth+1, opts)
			if len(out) >= opts.MaxKeys {
				return
			}
		}
	case map[string]string:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			out[key] = child
			if len(out) >= opts.MaxKeys {
				return
			}
		}
	case []any:
		for i, child := range v {
			idx := strconv.Itoa(i)
			key := idx
			if prefix != "" {
				key = prefix + "[" + idx + "]"
			}
			flattenInto(out, key, child, depth+1, opts)
			if len(out) >= opts.MaxKeys {
				return
			}
		}
	case nil:
		if prefix == "" {
			return
		}
		out[prefix] = ""
	case string:
		if prefix == "" {
			out["value"] = v
			return
		}
		out[prefix] = v
	default:
		if prefix == "" {
			out["value"] = fmt.Sprint(v)
			return
		}
		out[prefix] = fmt.Sprint(v)
	}
}
