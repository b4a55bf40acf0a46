// Package offers holds BOM slots that were offered to a contact but not yet
// confirmed. Entries expire after a TTL and are cleared on confirmation.
package offers

import (
	"context"
	"errors"
)

// ErrNoOffer is returned when the requested offer is absent or expired.
var ErrNoOffer = errors.New("offer not found")

// Store is keyed by contact; the last write for a contact wins.
type Store interface {
	// PutOffers replaces the contact's offers; index 1 is offers[0].
	PutOffers(ctx context.Context, contact string, offers []string) error
	Offer(ctx context.Context, contact string, index int) (string, error)
	Select(ctx context.Context, contact, offer string) error
	Selected(ctx context.Context, contact string) (string, error)
	Clear(ctx context.Context, contact string) error
}
