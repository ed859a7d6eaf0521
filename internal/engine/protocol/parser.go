package protocol

import (
	"TrialStats/internal/core/model"
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FieldsPerLine is the number of numeric tokens every log line must carry:
// timestamp, two role counters, the recorder's snapshot time, rx bytes and tx bytes.
const FieldsPerLine = 6

// ErrMalformedLine is returned when a log line does not carry exactly FieldsPerLine
// numeric tokens, or carries a negative counter.
var ErrMalformedLine = errors.New("malformed log line")

// MalformedLineError describes a rejected line. It matches ErrMalformedLine with errors.Is.
type MalformedLineError struct {
	// Line is the 1-based line number, or 0 when a single line was parsed on its own.
	Line   int
	Tokens int
	// Dropped lists the fields that were not base-10 integers.
	Dropped []string
	Text    string
	Reason  string
}

func (e *MalformedLineError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed log line %d (%s): %q", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("malformed log line (%s): %q", e.Reason, e.Text)
}

func (e *MalformedLineError) Unwrap() error { return ErrMalformedLine }

// fields holds the six numeric tokens of a line in positional order.
type fields [FieldsPerLine]int64

// scanFields extracts the numeric tokens of a line. A field is numeric when the whole
// trimmed field parses as a base-10 integer; everything else (e.g. the interface name)
// is dropped.
func scanFields(line string) (fields, error) {
	var out fields
	var dropped []string
	n := 0
	for _, raw := range strings.Split(line, ",") {
		field := strings.TrimSpace(raw)
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			dropped = append(dropped, field)
			continue
		}
		if n < FieldsPerLine {
			out[n] = v
		}
		n++
	}
	if n != FieldsPerLine {
		reason := fmt.Sprintf("expected %d numeric fields, got %d", FieldsPerLine, n)
		if len(dropped) > 0 {
			reason += fmt.Sprintf("; non-numeric fields %q", dropped)
		}
		return out, &MalformedLineError{
			Tokens:  n,
			Dropped: dropped,
			Text:    line,
			Reason:  reason,
		}
	}
	// Position 3 is the ignored snapshot time; the rest are cumulative counters.
	for _, i := range []int{1, 2, 4, 5} {
		if out[i] < 0 {
			return out, &MalformedLineError{
				Tokens: n,
				Text:   line,
				Reason: fmt.Sprintf("negative counter in field %d", i+1),
			}
		}
	}
	return out, nil
}

// ParseProducerLine parses a single producer sample.
func ParseProducerLine(line string) (model.ProducerEntry, error) {
	f, err := scanFields(line)
	if err != nil {
		return model.ProducerEntry{}, err
	}
	return model.ProducerEntry{
		Timestamp:      f[0],
		PacketsSent:    f[1],
		TotalSentBytes: f[2],
		Snapshot:       model.Snapshot{RxBytes: f[4], TxBytes: f[5]},
	}, nil
}

// ParseConsumerLine parses a single consumer sample.
func ParseConsumerLine(line string) (model.ConsumerEntry, error) {
	f, err := scanFields(line)
	if err != nil {
		return model.ConsumerEntry{}, err
	}
	return model.ConsumerEntry{
		Timestamp:          f[0],
		PacketsReceived:    f[1],
		TotalReceivedBytes: f[2],
		Snapshot:           model.Snapshot{RxBytes: f[4], TxBytes: f[5]},
	}, nil
}

// ParseProducerLog parses every non-blank line of a producer log, in order.
func ParseProducerLog(r io.Reader) ([]model.ProducerEntry, error) {
	return parseLog(r, ParseProducerLine)
}

// ParseConsumerLog parses every non-blank line of a consumer log, in order.
func ParseConsumerLog(r io.Reader) ([]model.ConsumerEntry, error) {
	return parseLog(r, ParseConsumerLine)
}

func parseLog[E any](r io.Reader, parseLine func(string) (E, error)) ([]E, error) {
	var entries []E
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			var mle *MalformedLineError
			if errors.As(err, &mle) {
				mle.Line = lineNo
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return entries, nil
}
