package logistics

import "errors"

var (
	// ErrDuplicateEntity is returned when registering an id that already exists.
	ErrDuplicateEntity = errors.New("logistics: entity already registered")
	// ErrOverCapacity is returned when an entity is registered holding more than it can.
	ErrOverCapacity = errors.New("logistics: energy exceeds capacity")
	// ErrInvalidAmount rejects non-positive lease amounts.
	ErrInvalidAmount = errors.New("logistics: amount must be positive")
	// ErrUnknownRequester means the lease requester is not a registered worker.
	ErrUnknownRequester = errors.New("logistics: unknown requester")
	// ErrUnknownLease means the lease is not in the zone's table.
	ErrUnknownLease = errors.New("logistics: unknown lease")
	// ErrLeaseBound is returned when binding a lease that already names a source.
	ErrLeaseBound = errors.New("logistics: lease already bound")
	// ErrUnknownSource means the source is missing from the zone or cannot be withdrawn from.
	ErrUnknownSource = errors.New("logistics: unknown source")
	// ErrOversubscribed rejects a bind when the source has no unreserved energy left.
	ErrOversubscribed = errors.New("logistics: source fully reserved")
)
