package genie

// NestingAllowed reports whether a coordinator may be constructed at the
// given nesting level. Depth increases by one for each genie-calls-genie
// hop; a level at or above max is rejected to bound recursion.
func NestingAllowed(currentLevel, maxDepth int) bool {
	return currentLevel < maxDepth
}
