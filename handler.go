package smf

// A Handler receives the output of a Decoder.
//
// HandleEvent is invoked once per decoded event, in stream order, at the moment
// the last byte of the event has been consumed. The event is owned by the
// Decoder and must not be retained after the call returns.
//
// HandleComplete is invoked exactly once, when every track declared by the
// file header has ended with a valid end-of-track meta event.
//
// A non-nil error returned by either method aborts decoding; Decode returns it
// wrapped in an *Error.
type Handler interface {
	HandleEvent(dec *Decoder, ev *Event) error
	HandleComplete(dec *Decoder) error
}

// HandlerFuncs adapts plain functions to the Handler interface. Nil functions
// are ignored.
type HandlerFuncs struct {
	Event    func(dec *Decoder, ev *Event) error
	Complete func(dec *Decoder) error
}

// HandleEvent calls h.Event if non-nil.
func (h HandlerFuncs) HandleEvent(dec *Decoder, ev *Event) error {
	if h.Event == nil {
		return nil
	}
	return h.Event(dec, ev)
}

// HandleComplete calls h.Complete if non-nil.
func (h HandlerFuncs) HandleComplete(dec *Decoder) error {
	if h.Complete == nil {
		return nil
	}
	return h.Complete(dec)
}
