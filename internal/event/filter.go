package event

// Common filter predicates, usable with WithFilter or as a gate middleware.

// FilterPayload creates a filter for payloads of type T.
// Payloads of any other type are rejected.
func FilterPayload[T any](predicate func(payload T) bool) FilterFunc {
	return func(payload any) bool {
		if p, ok := payload.(T); ok {
			return predicate(p)
		}
		return false
	}
}

// FilterType accepts only payloads of type T.
func FilterType[T any]() FilterFunc {
	return func(payload any) bool {
		_, ok := payload.(T)
		return ok
	}
}

// FilterAnd combines multiple filters with AND logic.
// All filters must pass for the payload to be delivered.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(payload any) bool {
		for _, f := range filters {
			if !f(payload) {
				return false
			}
		}
		return true
	}
}

// FilterOr combines multiple filters with OR logic.
// At least one filter must pass for the payload to be delivered.
func FilterOr(filters ...FilterFunc) FilterFunc {
	return func(payload any) bool {
		for _, f := range filters {
			if f(payload) {
				return true
			}
		}
		return false
	}
}

// FilterNot negates a filter.
func FilterNot(filter FilterFunc) FilterFunc {
	return func(payload any) bool {
		return !filter(payload)
	}
}

// FilterAll allows all payloads (no filtering).
func FilterAll() FilterFunc {
	return func(payload any) bool {
		return true
	}
}

// FilterNone blocks all payloads.
func FilterNone() FilterFunc {
	return func(payload any) bool {
		return false
	}
}
