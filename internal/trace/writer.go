package trace

import "io"

// eventWriter serializes events in one format. Chrome output is a single
// JSON document, so it needs an opening bracket, commas and a closing one;
// the other formats are plain concatenations.
type eventWriter struct {
	w      io.Writer
	format Format
	n      int
}

func (e *eventWriter) begin() error {
	if e.format != FormatChrome {
		return nil
	}
	_, err := io.WriteString(e.w, "{\"traceEvents\":[\n")
	return err
}

func (e *eventWriter) write(ev *Event) error {
	if e.format == FormatChrome && e.n > 0 {
		if _, err := io.WriteString(e.w, ",\n"); err != nil {
			return err
		}
	}
	e.n++
	_, err := e.w.Write(FormatEvent(ev, e.format))
	return err
}

func (e *eventWriter) end() error {
	if e.format != FormatChrome {
		return nil
	}
	_, err := io.WriteString(e.w, "\n]}\n")
	return err
}
