package jobtel

import "sort"

// AttributeValue is a span or measurement attribute value.
//
// Supported: string, bool, all Go integer kinds, float32, float64, and
// homogeneous slices of those. Slices of pointers ([]*string, []*int64,
// []*float64, []*bool) carry nullable elements.
type AttributeValue = any

// Attributes maps attribute keys to values.
type Attributes map[string]AttributeValue

// Keys returns the attribute keys in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new Attributes with b's entries written over a's.
func (a Attributes) Merge(b Attributes) Attributes {
	out := make(Attributes, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
