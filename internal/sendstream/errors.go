package sendstream

import "fmt"

// InvalidDataError reports malformed input: a bad magic/version, a
// wrong-length TLV payload, a missing required TLV, an out-of-range
// timestamp, or a state-machine violation (new subvolume while one is
// already open, End without an open subvolume, operating on a path that
// isn't there).
//
// EOF conditions are reported with io.EOF (clean, at a frame boundary) or
// io.ErrUnexpectedEOF (fatal, mid-value) instead of a dedicated type —
// callers already use errors.Is against those stdlib sentinels.
type InvalidDataError struct {
	Reason string
}

func (e *InvalidDataError) Error() string { return e.Reason }

func invalidDataf(format string, args ...any) error {
	return &InvalidDataError{Reason: fmt.Sprintf(format, args...)}
}
