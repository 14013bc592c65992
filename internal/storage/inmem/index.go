package inmem

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
)

var errSingleArgument = errors.New("must provide only a single argument")

// entryIDIndex indexes stored entries by the raw bytes of their UUID
type entryIDIndex struct{}

func (entryIDIndex) FromObject(obj any) (bool, []byte, error) {
	stored, ok := obj.(*storedEntry)
	if !ok {
		return false, nil, fmt.Errorf("unexpected object of type %T", obj)
	}
	id := stored.entry.ID
	return true, id[:], nil
}

func (entryIDIndex) FromArgs(args ...any) ([]byte, error) {
	if len(args) != 1 {
		return nil, errSingleArgument
	}
	id, ok := args[0].(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("argument must be a uuid.UUID: %#v", args[0])
	}
	return id[:], nil
}

// fingerprintIndex indexes stored entries by their identifier fingerprint
type fingerprintIndex struct{}

func (fingerprintIndex) FromObject(obj any) (bool, []byte, error) {
	stored, ok := obj.(*storedEntry)
	if !ok {
		return false, nil, fmt.Errorf("unexpected object of type %T", obj)
	}
	if stored.entry.Fingerprint == "" {
		return false, nil, nil
	}
	return true, []byte(stored.entry.Fingerprint + "\x00"), nil
}

func (fingerprintIndex) FromArgs(args ...any) ([]byte, error) {
	if len(args) != 1 {
		return nil, errSingleArgument
	}
	fingerprint, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("argument must be a string: %#v", args[0])
	}
	return []byte(fingerprint + "\x00"), nil
}
