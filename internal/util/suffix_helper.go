package util

// Plural picks the word form for n.
func Plural(n int, one, many string) string {
	if n == 1 || n == -1 {
		return one
	}
	return many
}

func SuffixDay(n int) string {
	return Plural(n, "day", "days")
}
