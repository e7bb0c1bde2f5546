package port

import "context"

type ReceiptNumberGenerator interface {
	NextReceiptNumber(ctx context.Context) (string, error)
}

// ReceiptNumberFunc adapts a plain function to ReceiptNumberGenerator.
type ReceiptNumberFunc func(ctx context.Context) (string, error)

func (f ReceiptNumberFunc) NextReceiptNumber(ctx context.Context) (string, error) {
	return f(ctx)
}
