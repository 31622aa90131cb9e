package jobtel

import "sort"

// Carrier is a flat string mapping used to move a context between
// processes. It satisfies propagation.TextMapCarrier.
type Carrier map[string]string

// Get returns the value for key, or "".
func (c Carrier) Get(key string) string {
	return c[key]
}

// Set stores value under key.
func (c Carrier) Set(key, value string) {
	c[key] = value
}

// Keys returns the carrier keys in sorted order.
func (c Carrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
