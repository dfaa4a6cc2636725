package ring

import "errors"

var (
	ErrConfigInvalid        = errors.New("invalid ring configuration")
	ErrVnodeOutOfRange      = errors.New("vnode id out of range")
	ErrVnodeAlreadyOnTarget = errors.New("vnode already owned by target pnode")
	ErrPnodeUnknown         = errors.New("unknown pnode")
	ErrPnodeStillInUse      = errors.New("pnode still owns vnodes")
	ErrRingIncomplete       = errors.New("ring store has no completion marker")
	ErrRingVersionMismatch  = errors.New("unsupported ring schema version")
	ErrSerialization        = errors.New("malformed ring topology")
)
