package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Client is the injected remote-provider capability the sync engine runs
// against. Implementations own the wire format, authentication and token
// refresh; the engine only sees typed records and classified errors.
type Client interface {
	// ListEvents returns one page of events. With a SyncToken it lists only
	// changed records since that token; without one it lists the query's
	// time window. The final page of a sequence carries NextSyncToken.
	ListEvents(ctx context.Context, q ListQuery) (*EventPage, error)

	// CreateEvent creates a remote event and returns it with the assigned
	// id, revision tag and last-modified timestamp.
	CreateEvent(ctx context.Context, calendarID string, p EventPayload) (*Event, error)

	// UpdateEvent updates a remote event iff its current revision tag equals
	// etag. A mismatch fails with an Error whose IsConflict() is true. An
	// empty etag updates unconditionally.
	UpdateEvent(ctx context.Context, calendarID, eventID string, p EventPayload, etag string) (*Event, error)

	// CancelEvent cancels a remote event. Cancelling an already cancelled
	// event is not an error.
	CancelEvent(ctx context.Context, calendarID, eventID string) error
}

// Factory constructs a Client from provider-specific settings.
type Factory func(settings map[string]string) (Client, error)

// UnsupportedSchemeError is returned when no factory is registered for a
// provider scheme.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported provider scheme: %q", e.Scheme)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a client factory available under the given scheme.
// Provider implementations register themselves at init time.
func Register(scheme string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = factory
}

// New constructs a Client for the given scheme.
func New(scheme string, settings map[string]string) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[scheme]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnsupportedSchemeError{Scheme: scheme}
	}
	return factory(settings)
}

// Schemes returns the registered provider schemes, sorted.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	schemes := make([]string, 0, len(registry))
	for s := range registry {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}
