package dispatch

// Assemble flattens per-batch results, given in batch order, into one list.
// total is a capacity hint, normally the number of input texts.
func Assemble(results [][]string, total int) []string {
	if total < 0 {
		total = 0
	}
	all := make([]string, 0, total)
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}
