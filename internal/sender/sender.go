// Package sender defines message delivery interfaces and implementations
package sender

import (
	"context"

	"alert-relay/internal/payload"
)

// Sender delivers one serialized document to a URL. Implementations do not
// retry; a returned error means the document was not accepted.
type Sender interface {
	Send(ctx context.Context, url string, body []byte) error
}

// Mirror receives a copy of every delivered document, e.g. for an operator
// chat. Mirror errors never affect delivery.
type Mirror interface {
	Mirror(ctx context.Context, doc payload.Document) error
}
