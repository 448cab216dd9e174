package testing

// StrictlyIncreasing reports whether every id is greater than the one before it
func StrictlyIncreasing(ids []int64) bool {
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			return false
		}
	}
	return true
}
