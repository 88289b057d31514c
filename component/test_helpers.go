package component

// Test helpers shared across test files

// intPtr returns a pointer to an int value.
// Used for optional schema fields like Minimum and Maximum.
func intPtr(i int) *int {
	return &i
}
