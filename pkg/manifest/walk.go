package manifest

import (
	"iter"
	"sort"
	"strconv"
)

// reservedLabelsKey is the only object-valued key a leaf object may carry.
const reservedLabelsKey = "labels"

// Walk lazily yields every leaf object of doc together with its path
// ("$", "$.a.b", "$.items[2]"). A leaf object is a JSON object whose values,
// ignoring the "labels" key, are all scalars. Keys are visited in lexical order
// so the sequence is stable and can be restarted.
func Walk(doc any) iter.Seq2[string, map[string]any] {
	return func(yield func(string, map[string]any) bool) {
		walk("$", doc, yield)
	}
}

func walk(path string, v any, yield func(string, map[string]any) bool) bool {
	switch t := v.(type) {
	case []any:
		for i, item := range t {
			if !walk(path+"["+strconv.Itoa(i)+"]", item, yield) {
				return false
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			if k == reservedLabelsKey {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		leaf := true
		for _, k := range keys {
			switch t[k].(type) {
			case []any, map[string]any:
				leaf = false
			}
		}
		if leaf {
			return yield(path, t)
		}
		for _, k := range keys {
			if !walk(path+"."+k, t[k], yield) {
				return false
			}
		}
	}
	return true
}
