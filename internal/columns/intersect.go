package columns

import "sort"

// Intersect возвращает имена, присутствующие в каждом наборе,
// без повторов и в порядке сортировки по байтам.
func Intersect(sets ...[]string) []string {
	if len(sets) == 0 {
		return []string{}
	}

	acc := toSet(sets[0])
	for _, cols := range sets[1:] {
		if len(acc) == 0 {
			break
		}
		next := toSet(cols)
		for name := range acc {
			if _, ok := next[name]; !ok {
				delete(acc, name)
			}
		}
	}

	out := make([]string, 0, len(acc))
	for name := range acc {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func toSet(cols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	return set
}
