package bptree

// insertAt and removeAt are the generic slice splice helpers the
// split/merge/redistribute algorithms build on. Grounded on the
// teacher's generic insert/remove helpers in binary_search.go.
func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	return append(s[:i], s[i+1:]...)
}
