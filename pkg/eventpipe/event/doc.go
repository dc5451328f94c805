/*
Package event defines the event model: categories, the immutable Value tree
used for every record, and event id construction.

# Values

Events are assembled with a Builder and frozen into a Value before they are
serialized. Object members keep insertion order, so the same inputs always
encode to the same bytes:

	ev := event.NewBuilder().
	    SetString("category", event.Business.String()).
	    SetString("currency", "USD").
	    SetInt("amount", 99).
	    Build()

	data, err := json.Marshal(ev)

Parse reverses the process for rows read back from the store.

# Event ids

JoinID builds colon-separated ids and returns ErrInvalidEventID instead of
truncating when a limit is exceeded:

	id, err := event.JoinID("Sink", "gems", "boost", "speed")
*/
package event
