// pkg/core/result.go
package core

// Result is the {status, message} envelope every bridge operation answers with.
type Result struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// OK builds a successful result.
func OK(message string) Result {
	return Result{Status: true, Message: message}
}

// Fail builds an unsuccessful result.
func Fail(message string) Result {
	return Result{Status: false, Message: message}
}
