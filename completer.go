package gptbatch

import "context"

//go:generate mockgen -source=completer.go -destination=internal/mocks/mock_completer.go -package=mocks

// Completer: Turns one (instruction, input) pair into one answer. Client is the production implementation; implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, instruction, input string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, instruction, input string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, instruction, input string) (string, error) {
	return f(ctx, instruction, input)
}
