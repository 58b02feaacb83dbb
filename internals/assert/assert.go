package assert

import "fmt"

// Assert panics with msg when condition does not hold.
func Assert(condition bool, msg string, other ...any) {
	if condition {
		return
	}
	if len(other) > 0 {
		panic(fmt.Sprint(append([]any{msg, " "}, other...)...))
	}
	panic(msg)
}

// AssertNil panics when err is not nil, appending the error to msg.
func AssertNil(err error, msg string, other ...any) {
	if err == nil {
		return
	}
	Assert(false, msg+": "+err.Error(), other...)
}
