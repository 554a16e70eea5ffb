package source

import (
	"context"
	"errors"

	"receiptdash/internal/core"
)

// Ports for inbound receipt data.
type (
	// ReceiptFetcher retrieves the processed receipt list from the data
	// source, most recent record first. The bearer credential is supplied
	// per call by whichever component drives the refresh.
	ReceiptFetcher interface {
		Fetch(ctx context.Context, token string) ([]core.RawReceipt, error)
	}
)

// ErrUnauthorized reports a 401 from the data source: the credential has
// expired and the caller must re-authenticate.
var ErrUnauthorized = errors.New("data source rejected credential")
