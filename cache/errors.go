package cache

import (
	platformerrors "github.com/jmgilman/go/errors"
)

// CodeNotResurrectable marks a dereference of a detached handle whose
// recipe cannot rebuild the real object.
const CodeNotResurrectable platformerrors.ErrorCode = "NOT_RESURRECTABLE"

var (
	// ErrNotResurrectable is returned (wrapped, with handle context) when a
	// detached handle has no usable recipe: no recipe at all, a broken
	// Derived chain, an empty step name or an unknown constructor.
	ErrNotResurrectable = platformerrors.New(CodeNotResurrectable, "reference cannot be resurrected")

	// ErrNoAttribute is returned when the real object has no attribute,
	// method, field or map entry with the requested name.
	ErrNoAttribute = platformerrors.New(platformerrors.CodeNotFound, "no such attribute")

	// ErrNotContainer is returned by iteration, indexing and length on a
	// real object that is neither a Sequence nor a slice/array.
	ErrNotContainer = platformerrors.New(platformerrors.CodeInvalidInput, "object is not a container")

	// ErrOutOfRange is returned for an index outside a container.
	ErrOutOfRange = platformerrors.New(platformerrors.CodeInvalidInput, "index out of range")

	// ErrBadArguments is returned when call arguments cannot be bound to the
	// real method's parameters.
	ErrBadArguments = platformerrors.New(platformerrors.CodeInvalidInput, "arguments do not match method signature")

	// ErrUnknownConstructor is returned by Root for an unregistered name.
	ErrUnknownConstructor = platformerrors.New(platformerrors.CodeInvalidConfig, "unknown constructor")

	// ErrBadSnapshot is returned by Load for data that is not a snapshot
	// written by Save, or one whose tables do not line up.
	ErrBadSnapshot = platformerrors.New(platformerrors.CodeInvalidInput, "malformed snapshot")

	// ErrIDConflict is returned by Load into a cache that has already
	// issued surrogate ids, by Root or by an earlier Load.
	ErrIDConflict = platformerrors.New(platformerrors.CodeConflict, "surrogate ids already issued")
)

// notResurrectable builds the contextual error for handle id.
func notResurrectable(id uint64, reason string, ctx map[string]interface{}) error {
	if ctx == nil {
		ctx = make(map[string]interface{}, 2)
	}
	ctx["handle"] = id
	ctx["reason"] = reason
	return platformerrors.WrapWithContext(ErrNotResurrectable, CodeNotResurrectable, "resurrect handle: "+reason, ctx)
}

func wrapCoded(sentinel error, code platformerrors.ErrorCode, msg string, ctx map[string]interface{}) error {
	return platformerrors.WrapWithContext(sentinel, code, msg, ctx)
}
