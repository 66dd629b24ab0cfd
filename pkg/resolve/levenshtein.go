package resolve

// levenshteinWorkspace provides reusable row buffers for edit-distance
// calculations to avoid repeated allocations when resolving large batches
// against large graphs. Not safe for concurrent use - each resolver owns one.
type levenshteinWorkspace struct {
	prev []int
	curr []int
}

// newLevenshteinWorkspace creates a workspace sized for strings up to
// initialWidth runes; buffers grow on demand.
func newLevenshteinWorkspace(initialWidth int) *levenshteinWorkspace {
	return &levenshteinWorkspace{
		prev: make([]int, initialWidth+1),
		curr: make([]int, initialWidth+1),
	}
}

// distance computes the Levenshtein edit distance between two rune slices
// using the classic two-row dynamic program: O(len(a)*len(b)) time, O(len(b))
// space. Distances are in whole edit operations (insert, delete, substitute).
func (ws *levenshteinWorkspace) distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	width := len(b) + 1
	if cap(ws.prev) < width {
		ws.prev = make([]int, width)
		ws.curr = make([]int, width)
	}
	prev := ws.prev[:width]
	curr := ws.curr[:width]

	for j := 0; j < width; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	// After the final swap, prev holds the last computed row.
	result := prev[len(b)]
	ws.prev, ws.curr = prev, curr
	return result
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
