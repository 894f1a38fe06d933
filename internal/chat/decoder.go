package chat

import (
	"bytes"
	"encoding/json"
)

// DecoderState is the framing state of an event stream.
type DecoderState int

const (
	// StateAccumulatingLine means the buffer holds a partial line without a newline yet.
	StateAccumulatingLine DecoderState = iota
	// StateAwaitingMoreData means a complete line failed to parse and was put back
	// at the head of the buffer to be retried when more data arrives.
	StateAwaitingMoreData
	// StateDone means [DONE] was seen or the stream ended.
	StateDone
)

func (s DecoderState) String() string {
	switch s {
	case StateAccumulatingLine:
		return "accumulating_line"
	case StateAwaitingMoreData:
		return "awaiting_more_data"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

var dataPrefix = []byte("data: ")

type lineResult int

const (
	lineConsumed lineResult = iota
	lineDeferred
	lineTerminal
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder turns chunks of a `data: <json>` event stream into text deltas.
// It is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	state   DecoderState
	onDelta func(text string)
}

func NewDecoder(onDelta func(text string)) *Decoder {
	if onDelta == nil {
		onDelta = func(string) {}
	}
	return &Decoder{onDelta: onDelta}
}

// State reports the current framing state.
func (d *Decoder) State() DecoderState {
	return d.state
}

// Feed appends a chunk and processes every complete line. It reports whether
// the stream has terminated.
func (d *Decoder) Feed(chunk []byte) bool {
	if d.state == StateDone {
		return true
	}
	d.buf = append(d.buf, chunk...)

	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			d.state = StateAccumulatingLine
			return false
		}

		switch d.processLine(d.buf[:idx]) {
		case lineTerminal:
			d.buf = nil
			d.state = StateDone
			return true
		case lineDeferred:
			// The line stays at the head of the buffer, newline included.
			d.state = StateAwaitingMoreData
			return false
		default:
			d.buf = d.buf[idx+1:]
		}
	}
}

// Finish processes whatever is still buffered once the source is closed.
// Lines that still fail to parse are discarded.
func (d *Decoder) Finish() {
	if d.state == StateDone {
		return
	}
	for _, line := range bytes.Split(d.buf, []byte{'\n'}) {
		if d.processLine(line) == lineTerminal {
			break
		}
	}
	d.buf = nil
	d.state = StateDone
}

func (d *Decoder) processLine(line []byte) lineResult {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 || line[0] == ':' {
		return lineConsumed
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		return lineConsumed
	}

	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if string(payload) == "[DONE]" {
		return lineTerminal
	}
	if !json.Valid(payload) {
		return lineDeferred
	}

	var chunk streamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return lineConsumed
	}
	if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
		d.onDelta(chunk.Choices[0].Delta.Content)
	}
	return lineConsumed
}
