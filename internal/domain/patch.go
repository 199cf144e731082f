package domain

// Patch is a tri-state field update used for nullable attempt columns.
// The zero value is "absent": applying it keeps the prior value.
// A patch can also explicitly set the column to null or to a value.
type Patch[T any] struct {
	set   bool
	value *T
}

// Set returns a patch that overwrites the prior value with v
func Set[T any](v T) Patch[T] {
	return Patch[T]{set: true, value: &v}
}

// SetPtr returns a patch that overwrites the prior value with *v, or nulls it when v is nil
func SetPtr[T any](v *T) Patch[T] {
	if v == nil {
		return Clear[T]()
	}
	c := *v
	return Patch[T]{set: true, value: &c}
}

// Clear returns a patch that explicitly nulls the column
func Clear[T any]() Patch[T] {
	return Patch[T]{set: true}
}

// IsSet reports whether the patch carries a decision (value or null)
func (p Patch[T]) IsSet() bool {
	return p.set
}

// Value returns the patched value, or nil when absent or cleared
func (p Patch[T]) Value() *T {
	return p.value
}

// ApplyTo returns the post-merge value: the patch when set, the prior otherwise
func (p Patch[T]) ApplyTo(prior *T) *T {
	if !p.set {
		return prior
	}
	return p.value
}

// preferPtr returns update when present, prior otherwise
func preferPtr[T any](update, prior *T) *T {
	if update != nil {
		return update
	}
	return prior
}

// unwrapOr returns *update when present, prior otherwise
func unwrapOr[T any](update *T, prior T) T {
	if update != nil {
		return *update
	}
	return prior
}

func ptr[T any](v T) *T {
	return &v
}
