package graph

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedEvent means the front-end produced an event the builder
// cannot use. It fails the front-end, and with it the run.
var ErrMalformedEvent = errors.New("malformed event")

// Source yields events in traversal order. Next returns io.EOF when done.
type Source interface {
	Next() (*Event, error)
}

// Decoder reads one JSON event per line. Blank lines are skipped.
type Decoder struct {
	sc   *bufio.Scanner
	name string
	line int
}

const maxEventSize = 16 << 20

// NewDecoder reads events from r. name labels errors.
func NewDecoder(r io.Reader, name string) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxEventSize)
	return &Decoder{sc: sc, name: name}
}

func (d *Decoder) Next() (*Event, error) {
	for d.sc.Scan() {
		d.line++
		data := d.sc.Bytes()
		if len(trimSpace(data)) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: %w: %w", d.name, d.line, ErrMalformedEvent, err)
		}
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", d.name, d.line, err)
		}
		return &ev, nil
	}
	if err := d.sc.Err(); err != nil {
		return nil, fmt.Errorf("%s:%d: failed to read events: %w", d.name, d.line, err)
	}
	return nil, io.EOF
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\r') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// Validate checks that the payload required by the event's kind is present.
func (ev *Event) Validate() error {
	missing := func(what string) error {
		return fmt.Errorf("%w: %s event %q has no %s", ErrMalformedEvent, ev.Kind, ev.Name, what)
	}
	switch ev.Kind {
	case EventFile:
		if ev.Location.File == "" {
			return missing("file")
		}
		return nil
	case EventRecord, EventEnum, EventTypedef, EventAlias, EventFunction:
		if ev.Name == "" {
			return missing("name")
		}
	case EventVarDecl, EventVarRef, EventCall:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, ev.Kind)
	}

	switch ev.Kind {
	case EventRecord:
		if ev.Record == nil {
			return missing("record payload")
		}
		switch ev.Record.Tag {
		case "class", "struct", "union":
		default:
			return fmt.Errorf("%w: record event %q has tag %q, want class, struct or union",
				ErrMalformedEvent, ev.Name, ev.Record.Tag)
		}
	case EventEnum:
		if ev.Enum == nil {
			ev.Enum = &Enum{}
		}
	case EventTypedef, EventAlias:
		if ev.Alias == nil || ev.Alias.Underlying.IsZero() {
			return missing("underlying type")
		}
	case EventFunction:
		if ev.Function == nil {
			return missing("function payload")
		}
	case EventVarDecl:
		if ev.Var == nil {
			return missing("var payload")
		}
	case EventVarRef:
		if ev.Ref == nil {
			return missing("ref payload")
		}
	case EventCall:
		if ev.Call == nil || ev.Call.Target.Name == "" {
			return missing("call target")
		}
	}
	return nil
}

// SliceSource yields a fixed list of events.
type SliceSource struct {
	events []*Event
	next   int
}

// Events returns a Source over evs.
func Events(evs ...*Event) *SliceSource {
	return &SliceSource{events: evs}
}

func (s *SliceSource) Next() (*Event, error) {
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}

// Concat yields the events of each source in turn.
func Concat(sources ...Source) Source {
	return &concatSource{sources: sources}
}

type concatSource struct {
	sources []Source
}

func (c *concatSource) Next() (*Event, error) {
	for len(c.sources) > 0 {
		ev, err := c.sources[0].Next()
		if errors.Is(err, io.EOF) {
			c.sources = c.sources[1:]
			continue
		}
		return ev, err
	}
	return nil, io.EOF
}
