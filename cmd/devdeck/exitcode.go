package main

import "fmt"

// exitCodeError carries a child process exit status out of a command
// without logging it as a failure.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
