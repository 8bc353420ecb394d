package registry

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is the observable record of a successful state change.
type Event struct {
	Action     string      `json:"action"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

func newEvent(action string, kv ...string) Event {
	e := Event{Action: action}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Attributes = append(e.Attributes, Attribute{Key: kv[i], Value: kv[i+1]})
	}
	return e
}

// Attr returns the value of the first attribute named key.
func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
