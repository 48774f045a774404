// Package sse implements the provider stream decoder (C7): an
// incremental Server-Sent-Events parser resilient to arbitrary chunk
// splits, grounded on
// original_source/crates/rip-provider-openresponses/src/lib.rs's
// SseDecoder.
package sse

import (
	"encoding/json"
	"strings"

	"github.com/xLillium/rip/internal/schema"
)

// ParsedEventKind classifies what Decoder.Push/Finish produced from one
// logical SSE event.
type ParsedEventKind string

const (
	KindDone        ParsedEventKind = "done"
	KindInvalidJSON ParsedEventKind = "invalid_json"
	KindEvent       ParsedEventKind = "event"
)

// ParsedEvent is one decoded SSE event, already schema-validated against
// the StreamEvent and (when present) ResponseResource schemas.
type ParsedEvent struct {
	Kind           ParsedEventKind
	Event          *string
	Raw            string
	Data           map[string]any
	Errors         []string
	ResponseErrors []string
}

func doneEvent(raw string) ParsedEvent {
	return ParsedEvent{Kind: KindDone, Raw: raw}
}

func invalidJSONEvent(raw, errMsg string, event *string) ParsedEvent {
	return ParsedEvent{Kind: KindInvalidJSON, Raw: raw, Event: event, Errors: []string{errMsg}}
}

func newEvent(raw string, event *string, data map[string]any) ParsedEvent {
	var errs []string
	errs = append(errs, schema.ValidateStreamEvent(data)...)

	if event != nil {
		if typeName, ok := data["type"].(string); ok && typeName != *event {
			errs = append(errs, "event name '"+*event+"' does not match type '"+typeName+"'")
		}
	}

	var responseErrs []string
	if response, ok := data["response"]; ok {
		responseErrs = append(responseErrs, schema.ValidateResponseResource(response)...)
	}

	return ParsedEvent{
		Kind:           KindEvent,
		Event:          event,
		Raw:            raw,
		Data:           data,
		Errors:         errs,
		ResponseErrors: responseErrs,
	}
}

// Decoder incrementally parses a text/event-stream byte stream into
// ParsedEvent values. It is not safe for concurrent use.
type Decoder struct {
	buffer       string
	currentEvent *string
	currentData  []string
}

// New returns a Decoder ready to receive chunks via Push.
func New() *Decoder {
	return &Decoder{}
}

// Push feeds the next chunk of raw bytes, which may split a line, an
// event, or even a UTF-8 rune boundary arbitrarily. Complete events
// found so far are returned; any incomplete trailing line is buffered
// for the next Push or Finish call.
func (d *Decoder) Push(chunk string) []ParsedEvent {
	full := d.buffer + chunk
	endsWithNewline := strings.HasSuffix(full, "\n")

	var events []ParsedEvent
	lines := strings.Split(full, "\n")
	pendingTail := ""
	havePendingTail := false

lines:
	for i, rawLine := range lines {
		isLast := i == len(lines)-1
		if isLast && !endsWithNewline {
			pendingTail = rawLine
			havePendingTail = true
			break
		}

		line := strings.TrimSuffix(rawLine, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			if value == "" {
				d.currentEvent = nil
			} else {
				v := value
				d.currentEvent = &v
			}
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			d.currentData = append(d.currentData, value)
		case line == "":
			if isLast {
				pendingTail = ""
				havePendingTail = true
				break lines
			}
			if len(d.currentData) > 0 {
				raw := strings.Join(d.currentData, "\n")
				events = append(events, d.parseEvent(raw))
				d.currentData = nil
				d.currentEvent = nil
			}
		case strings.HasPrefix(line, ":"):
			// comment line, ignored
		}
	}

	if havePendingTail {
		d.buffer = pendingTail
	} else {
		d.buffer = ""
	}
	return events
}

// Finish terminates any buffered partial line with a newline and
// processes it. Called once the upstream stream has closed. A data line
// that no blank line follows yields no event.
func (d *Decoder) Finish() []ParsedEvent {
	if d.buffer == "" {
		return nil
	}
	chunk := d.buffer + "\n"
	d.buffer = ""
	return d.Push(chunk)
}

func (d *Decoder) parseEvent(raw string) ParsedEvent {
	if raw == "[DONE]" {
		return doneEvent(raw)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return invalidJSONEvent(raw, err.Error(), d.currentEvent)
	}
	return newEvent(raw, d.currentEvent, data)
}
