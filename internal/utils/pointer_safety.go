package utils

func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// NonEmptyPtr returns nil for the zero string so optional fields stay absent.
func NonEmptyPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
