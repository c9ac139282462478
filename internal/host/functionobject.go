package host

import "context"

// FunctionObject is evaluated by the time loop at every step, in the order
// Calculate, Execute, Write. Close is called once when the loop ends.
type FunctionObject interface {
	Name() string
	Initialise(ctx context.Context) error
	Calculate(ctx context.Context) error
	Execute(ctx context.Context) error
	Write(ctx context.Context) error
	Close() error
}
