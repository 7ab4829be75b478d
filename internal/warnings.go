package internal

import (
	"fmt"
	"strings"
)

// Warnings collects non-fatal problems found while an operation kept going.
type Warnings struct {
	Messages []string
}

func (w *Warnings) Error() string {
	return strings.Join(w.Messages, "\n")
}

func (w *Warnings) Is(target error) bool {
	_, ok := target.(*Warnings)
	return ok
}

func (w *Warnings) Add(s string, arg ...any) {
	w.Messages = append(w.Messages, fmt.Sprintf(s, arg...))
}

func (w *Warnings) Len() int {
	return len(w.Messages)
}

// If returns the collected warnings as an error, or nil if there are none.
func (w *Warnings) If() error {
	if len(w.Messages) > 0 {
		return w
	}
	return nil
}
