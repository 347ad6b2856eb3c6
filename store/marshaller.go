package store

import "errors"

var errNotBytes = errors.New("value is not []byte")

// Marshaller converts between the opaque key/value objects the embedding
// cache hands the store and the byte slices the on-disk record carries.
// Callers that only ever deal in []byte can use BytesMarshaller; anything
// richer plugs in its own implementation, the way the original
// implementation delegates to a pluggable StreamingMarshaller.
type Marshaller interface {
	ObjectToByteBuffer(v any) ([]byte, error)
	ObjectFromByteBuffer(data []byte) (any, error)
}

// KeyEquivalence derives the canonical string a key is indexed under. It is
// an optional collaborator: without one, Store canonicalizes a key by
// marshalling it and using the resulting bytes directly, which is correct
// whenever the Marshaller is deterministic. Supply one when two distinct
// key objects should be treated as equal despite marshalling differently,
// mirroring the original implementation's pluggable Equivalence.
type KeyEquivalence interface {
	CanonicalKey(key any) (string, error)
}

// BytesMarshaller is the identity Marshaller for []byte keys and values.
// Any other type passed to it fails serialization.
type BytesMarshaller struct{}

func (BytesMarshaller) ObjectToByteBuffer(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, wrapErr("marshal", ErrSerialization, errNotBytes)
	}
	return b, nil
}

func (BytesMarshaller) ObjectFromByteBuffer(data []byte) (any, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
