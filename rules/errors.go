package rules

import (
	"errors"
	"strings"
)

// ErrTemplateNotFound is wrapped by TemplateResolutionError when the
// registry has no rule set for the requested key.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateResolutionError reports a missing or invalid rule set. It is fatal
// for formatting.
type TemplateResolutionError struct {
	Institution string
	Faculty     string
	TemplateID  string
	Reason      string
	Err         error
}

func (e *TemplateResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("template resolution")
	if e.Institution != "" {
		b.WriteString(" for " + e.Institution)
		if e.Faculty != "" {
			b.WriteString("/" + e.Faculty)
		}
	} else if e.TemplateID != "" {
		b.WriteString(" for " + e.TemplateID)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil && !errors.Is(e.Err, ErrTemplateNotFound) {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *TemplateResolutionError) Unwrap() error {
	return e.Err
}
