package parallex

import "reflect"

// typeName returns the string representation of type T, used to tag a
// job's tracez span with the element types it runs over. Unlike pipz's Signature/typeName pair — which caches behind a
// package-level map because a long-lived pipeline may re-resolve the same
// handful of contract types across thousands of Process calls — a
// Controller resolves its item and output types exactly once, at
// construction, for the single job it drives. There is no hot path to
// amortize and no cross-job reuse to share a cache over, so a plain,
// uncached reflect.TypeOf().String() is the right size for this call
// site; the result is stored on the Controller itself (see NewController)
// rather than memoized globally.
func typeName[T any]() string {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return "<nil>"
	}
	return typ.String()
}
