package chord

// Source is an external stream of press/release notifications.
type Source interface {
	// Subscribe starts delivering notifications to h until the returned
	// subscription is closed. Notifications must be delivered one at a time.
	Subscribe(h Handler) (Subscription, error)
}

// Subscription is a live attachment to a Source.
type Subscription interface {
	Close() error
}
