package fingerprint

import (
	"reflect"
	"sort"
	"strconv"
)

// Diff returns the sorted dotted paths at which a and b differ. Array
// elements are addressed by position.
func Diff(a, b Definition) []string {
	var paths []string
	diffValue("", map[string]any(a), map[string]any(b), &paths)
	sort.Strings(paths)
	return paths
}

func diffValue(path string, a, b any, out *[]string) {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		keys := make(map[string]struct{}, len(am)+len(bm))
		for k := range am {
			keys[k] = struct{}{}
		}
		for k := range bm {
			keys[k] = struct{}{}
		}
		for k := range keys {
			diffValue(child(path, k), am[k], bm[k], out)
		}
		return
	}

	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok && bok && len(as) == len(bs) {
		for i := range as {
			diffValue(child(path, strconv.Itoa(i)), as[i], bs[i], out)
		}
		return
	}

	if !reflect.DeepEqual(a, b) {
		if path == "" {
			path = "."
		}
		*out = append(*out, path)
	}
}

func child(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
