package core

import "fmt"

// RejectedError is a directory request that was understood and refused.
// Detail is meant for the user as is.
type RejectedError struct {
	Status int
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("directory: %d %s", e.Status, e.Detail)
}
