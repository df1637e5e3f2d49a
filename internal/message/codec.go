package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrMissingType is returned when a frame has no "type" discriminator.
	ErrMissingType = errors.New("message type is missing")
	// ErrUnknownType is returned when the discriminator names no known variant.
	ErrUnknownType = errors.New("unknown message type")
	// ErrInvalidUTF8 is returned for a frame that is not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("message is not valid UTF-8")
)

// DecodeError describes a frame that could not be turned into an Envelope.
type DecodeError struct {
	Type Type
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("decode %q message: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// frame is the JSON shape of every envelope. Fields that do not belong to
// a variant are left empty and omitted.
type frame struct {
	Type     Type      `json:"type"`
	Category string    `json:"category,omitempty"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	Text     string    `json:"text,omitempty"`
	Names    *[]string `json:"names,omitempty"`
	Raw      string    `json:"raw,omitempty"`
}

// Encode serializes an envelope into its JSON wire form. String fields must
// be valid UTF-8: JSON cannot carry other bytes, so invalid sequences are
// replaced with U+FFFD. Decode rejects such text, so anything Decode returns
// encodes losslessly.
func Encode(env Envelope) string {
	env = deref(env)
	f := frame{Type: env.Type()}
	switch m := env.(type) {
	case Notice:
		f.Category, f.Text = m.Category, m.Text
	case Chat:
		f.From, f.To, f.Text = m.From, m.To, m.Text
	case RosterRequest:
	case Roster:
		// A nil roster omits the field; an empty one is written as [].
		if m.Names != nil {
			names := m.Names
			f.Names = &names
		}
	case Command:
		f.Raw = m.Raw
	}

	// frame only holds strings, marshaling cannot fail.
	data, _ := json.Marshal(f)
	return string(data)
}

// Decode parses a wire frame. Unknown fields are ignored so that newer
// clients can talk to older servers.
func Decode(text string) (Envelope, error) {
	if !utf8.ValidString(text) {
		return nil, &DecodeError{Err: ErrInvalidUTF8}
	}

	var f frame
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return nil, &DecodeError{Err: err}
	}

	switch f.Type {
	case "":
		return nil, &DecodeError{Err: ErrMissingType}
	case TypeNotice:
		return Notice{Category: f.Category, Text: f.Text}, nil
	case TypeChat:
		return Chat{From: f.From, To: f.To, Text: f.Text}, nil
	case TypeRosterRequest:
		return RosterRequest{}, nil
	case TypeRoster:
		var names []string
		if f.Names != nil {
			names = *f.Names
		}
		return Roster{Names: names}, nil
	case TypeCommand:
		return Command{Raw: f.Raw}, nil
	default:
		return nil, &DecodeError{Type: f.Type, Err: ErrUnknownType}
	}
}

// deref turns a pointer to a variant into the variant itself. The value
// receivers on the variants let pointers satisfy Envelope too.
func deref(env Envelope) Envelope {
	switch m := env.(type) {
	case *Notice:
		return *m
	case *Chat:
		return *m
	case *RosterRequest:
		return *m
	case *Roster:
		return *m
	case *Command:
		return *m
	default:
		return env
	}
}
