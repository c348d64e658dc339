package seed

import "github.com/mschirtzinger/dayline/internal/schema"

// MergeDefaultGroups appends every canonical group whose key is absent from
// loaded. Loaded entries keep their content and order.
func MergeDefaultGroups(loaded []schema.TaskGroup) []schema.TaskGroup {
	return mergeByKey(loaded, Groups(), func(g schema.TaskGroup) string { return g.Key })
}

// MergeDefaultTasks appends every task of defaults whose id is absent from
// loaded. Loaded entries keep their content and order.
func MergeDefaultTasks(loaded, defaults []schema.Task) []schema.Task {
	return mergeByKey(loaded, defaults, func(t schema.Task) string { return t.ID })
}

func mergeByKey[T any](loaded, defaults []T, key func(T) string) []T {
	seen := make(map[string]bool, len(loaded))
	out := make([]T, 0, len(loaded)+len(defaults))
	for _, v := range loaded {
		seen[key(v)] = true
		out = append(out, v)
	}
	for _, v := range defaults {
		k := key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
