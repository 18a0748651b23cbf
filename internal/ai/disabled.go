package ai

import "context"

type disabledGenerator struct{}

// NewDisabledGenerator returns a Generator that always fails with
// ErrDisabled. main wires it in when no API key is configured so every
// explanation comes from the canned texts.
func NewDisabledGenerator() Generator { return disabledGenerator{} }

func (disabledGenerator) Generate(context.Context, string) (string, error) {
	return "", ErrDisabled
}
