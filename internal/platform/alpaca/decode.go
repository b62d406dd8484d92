package alpaca

import (
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/brokerfeed/internal/domain"
)

// Decoded is the outcome of decoding one wire record: exactly one of Event
// and Err is set.
type Decoded struct {
	Event domain.MarketEvent
	Err   error
}

// DecodeError describes a record (or whole frame) that could not be turned
// into a MarketEvent. It unwraps to one of the domain decode sentinels or to
// the underlying JSON error.
type DecodeError struct {
	// Index is the record's position in the frame, or -1 for frame-level
	// failures.
	Index int
	// Discriminator is the record's "T" value when it could be read.
	Discriminator string
	// Raw is the offending record (or frame) as received.
	Raw json.RawMessage
	Err error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("alpaca/decode: frame: %v", e.Err)
	}
	if e.Discriminator != "" {
		return fmt.Sprintf("alpaca/decode: record %d (T=%q): %v", e.Index, e.Discriminator, e.Err)
	}
	return fmt.Sprintf("alpaca/decode: record %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses one inbound frame. A frame is a JSON array of records; each
// record is decoded on its own, so a bad record never hides its neighbours.
// Missing numeric fields decode as zero. Records with an unrecognised "T"
// are reported as errors rather than guessed at.
func Decode(frame []byte) []Decoded {
	var records []json.RawMessage
	if err := json.Unmarshal(frame, &records); err != nil {
		return []Decoded{{Err: &DecodeError{
			Index: -1,
			Raw:   json.RawMessage(frame),
			Err:   fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err),
		}}}
	}
	if records == nil {
		return []Decoded{{Err: &DecodeError{
			Index: -1,
			Raw:   json.RawMessage(frame),
			Err:   fmt.Errorf("%w: frame is null", domain.ErrMalformedFrame),
		}}}
	}
	if len(records) == 0 {
		return []Decoded{{Err: &DecodeError{
			Index: -1,
			Raw:   json.RawMessage(frame),
			Err:   domain.ErrEmptyEventList,
		}}}
	}

	out := make([]Decoded, 0, len(records))
	for i, raw := range records {
		event, err := decodeRecord(raw)
		if err != nil {
			err.Index = i
			out = append(out, Decoded{Err: err})
			continue
		}
		out = append(out, Decoded{Event: event})
	}
	return out
}

func decodeRecord(raw json.RawMessage) (domain.MarketEvent, *DecodeError) {
	// The discriminator is looked up by exact key: "t" is the timestamp.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	rawT, ok := fields["T"]
	if !ok {
		return nil, &DecodeError{Raw: raw, Err: domain.ErrMissingDiscriminator}
	}
	var t string
	if err := json.Unmarshal(rawT, &t); err != nil {
		return nil, &DecodeError{Raw: raw, Err: fmt.Errorf("%w: T is not a string", domain.ErrMissingDiscriminator)}
	}

	fail := func(err error) (domain.MarketEvent, *DecodeError) {
		return nil, &DecodeError{Discriminator: t, Raw: raw, Err: err}
	}

	switch t {
	case "t":
		var w wireTrade
		if err := json.Unmarshal(raw, &w); err != nil {
			return fail(err)
		}
		return w.toDomain(), nil

	case "q":
		var w wireQuote
		if err := json.Unmarshal(raw, &w); err != nil {
			return fail(err)
		}
		return w.toDomain(), nil

	case "b", "u", "d":
		var w wireBar
		if err := json.Unmarshal(raw, &w); err != nil {
			return fail(err)
		}
		bar := w.toDomain()
		switch t {
		case "u":
			return domain.UpdatedBar{Bar: bar}, nil
		case "d":
			return domain.DailyBar{Bar: bar}, nil
		}
		return bar, nil

	case "o":
		var w wireOrderBook
		if err := json.Unmarshal(raw, &w); err != nil {
			return fail(err)
		}
		return w.toDomain(), nil

	default:
		return fail(domain.ErrUnknownEventType)
	}
}
