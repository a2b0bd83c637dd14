package orders

import "github.com/peeves91/mcc-final-project/internal/saga"

type Status string

const (
	StatusPending    Status = "pending"
	StatusPurchased  Status = "purchased"
	StatusNoCart     Status = Status(saga.ReasonNoCartFound)
	StatusOutOfStock Status = Status(saga.ReasonNotEnoughInStock)
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusPurchased: true, StatusNoCart: true, StatusOutOfStock: true},
	StatusPurchased:  {},
	StatusNoCart:     {},
	StatusOutOfStock: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further transition is defined for s.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// FailureStatus maps an error_message from an OrderFailed event to a
// terminal status, rejecting strings that are not part of the contract.
func FailureStatus(reason string) (Status, bool) {
	switch reason {
	case saga.ReasonNoCartFound:
		return StatusNoCart, true
	case saga.ReasonNotEnoughInStock:
		return StatusOutOfStock, true
	}
	return "", false
}
