package matching

import "errors"

var ErrInvalid = errors.New("invalid mapping")
