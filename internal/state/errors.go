package state

import "errors"

var ErrNotFound = errors.New("state: record not found")
