package realtime

import "errors"

// ErrDisconnected is returned for writes on a dropped connection.
var ErrDisconnected = errors.New("realtime connection closed")
