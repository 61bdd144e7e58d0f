package coordinator

import (
	"errors"
	"fmt"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// Failure is a terminal refusal to let the primary job proceed.
type Failure struct {
	Kind     types.FailureKind
	Upstream string
	Message  string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind carried by err, if any.
func KindOf(err error) (types.FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

func newFailure(kind types.FailureKind, upstream string, cause error, format string, args ...interface{}) *Failure {
	return &Failure{
		Kind:     kind,
		Upstream: upstream,
		Message:  fmt.Sprintf(format, args...),
		Err:      cause,
	}
}
