package errors

// Severity tells a caller whether a failure must be propagated (Hard) or may
// be replaced with a safe default (Soft).
type Severity int

const (
	Soft Severity = iota + 1
	Hard
)

func (s Severity) String() string {
	switch s {
	case Soft:
		return "soft"
	case Hard:
		return "hard"
	default:
		return "unknown"
	}
}

// Result carries either a value or a classified failure.
type Result[T any] struct {
	Value    T
	Err      error
	Severity Severity
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps err, taking the severity from the error when it carries one
// and falling back to fallback otherwise.
func Fail[T any](err error, fallback Severity) Result[T] {
	sev := fallback
	var appErr ApplicationError
	if As(err, &appErr) {
		sev = appErr.Severity()
	}
	return Result[T]{Err: err, Severity: sev}
}

// Failed reports whether the result holds an error.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Hard reports whether the result holds an error that must be propagated.
func (r Result[T]) Hard() bool {
	return r.Err != nil && r.Severity == Hard
}

// OrElse returns the value, or def when the result failed softly.
// A hard failure still yields def; callers should check Hard first.
func (r Result[T]) OrElse(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}
