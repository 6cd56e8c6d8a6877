package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// FrameDecoder incrementally decodes the provider's SSE framing into content
// deltas. It is decoupled from the HTTP transport: feed it raw byte chunks
// split at arbitrary boundaries. Malformed frame payloads are skipped, not
// fatal; a provider-reported error frame terminates the stream with that
// error.
type FrameDecoder struct {
	buf    bytes.Buffer
	done   bool
	logger logrus.FieldLogger
}

// NewFrameDecoder returns a decoder. logger may be nil.
func NewFrameDecoder(logger logrus.FieldLogger) *FrameDecoder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FrameDecoder{logger: logger}
}

// Done reports whether the terminal sentinel has been seen.
func (d *FrameDecoder) Done() bool { return d.done }

// Feed consumes the next chunk of bytes and returns any complete content
// deltas it unlocked. Partial lines stay buffered until a later chunk
// completes them.
func (d *FrameDecoder) Feed(p []byte) ([]string, error) {
	if d.done {
		return nil, nil
	}
	d.buf.Write(p)

	var deltas []string
	for {
		raw := d.buf.Bytes()
		i := bytes.IndexByte(raw, '\n')
		if i < 0 {
			return deltas, nil
		}
		line := string(raw[:i])
		d.buf.Next(i + 1)

		out, err := d.decodeLine(line)
		if err != nil {
			return deltas, err
		}
		deltas = append(deltas, out...)
		if d.done {
			return deltas, nil
		}
	}
}

// Close flushes a trailing unterminated line, if any.
func (d *FrameDecoder) Close() ([]string, error) {
	if d.done || d.buf.Len() == 0 {
		return nil, nil
	}
	line := d.buf.String()
	d.buf.Reset()
	return d.decodeLine(line)
}

func (d *FrameDecoder) decodeLine(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "data:") {
		// comments, event names and blank keep-alives carry no payload
		return nil, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "[DONE]" {
		d.done = true
		return nil, nil
	}

	var frame streamFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		d.logger.WithError(err).Debug("skipping malformed stream frame")
		return nil, nil
	}
	if frame.Error != nil && frame.Error.Message != "" {
		return nil, errors.New(frame.Error.Message)
	}
	var deltas []string
	for _, ch := range frame.Choices {
		if ch.Delta.Content != "" {
			deltas = append(deltas, ch.Delta.Content)
		}
	}
	return deltas, nil
}
