package authstate

// Result is the outcome of an operation: a Value, or an Err. Check OK
// before using Value.
type Result[T any] struct {
	Value T
	Err   *Error
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Unwrap returns the value and the error in Go's usual shape.
func (r Result[T]) Unwrap() (T, error) {
	if r.Err != nil {
		return r.Value, r.Err
	}
	return r.Value, nil
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func failed[T any](err *Error) Result[T] {
	return Result[T]{Err: err}
}
