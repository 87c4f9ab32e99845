package ess

// matches reports whether an event passes a consumer's filters. The event
// name must be subscribed (or the events dimension is the wildcard). World
// and character filters only apply when the payload carries the field: a
// field absent from the payload is never a mismatch, only present-and-excluded
// is.
func matches(sub Subscription, event Event) bool {
	if !containsOrAll(sub.Events, event.Name) {
		return false
	}
	if !fieldMatches(sub.Worlds, event.Payload, worldIDField) {
		return false
	}
	return fieldMatches(sub.Characters, event.Payload, characterIDField)
}

func fieldMatches(set []string, payload Payload, field string) bool {
	value, present := payload.Str(field)
	if !present {
		return true
	}
	return containsOrAll(set, value)
}

func containsOrAll(set []string, value string) bool {
	for _, s := range set {
		if s == All || s == value {
			return true
		}
	}
	return false
}
