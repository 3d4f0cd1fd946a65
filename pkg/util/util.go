package util

// GetPtr returns a pointer to v. Handy for optional fields in literals.
func GetPtr[T any](v T) *T {
	return &v
}
