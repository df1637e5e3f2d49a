package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
	}{
		{"notice", Notice{Category: CategorySystem, Text: "Enter your username:"}},
		{"empty notice", Notice{}},
		{"chat", Chat{From: "alice", To: "bob", Text: "hi"}},
		{"chat without recipient", Chat{From: "alice", Text: "hello everyone"}},
		{"roster request", RosterRequest{}},
		{"roster", Roster{Names: []string{"alice", "bob", "alice"}}},
		{"nil roster", Roster{}},
		{"empty roster", Roster{Names: []string{}}},
		{"command", Command{Raw: "/kick bob"}},
		{"unicode", Chat{From: "zoë", Text: "héllo \"quoted\" \n newline"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := Decode(Encode(tc.env))
			require.NoError(t, err)
			assert.Equal(t, tc.env, decoded)
		})
	}
}

func TestEncode_WireShape(t *testing.T) {
	assert.JSONEq(t, `{"type":"notice","category":"SYSTEM","text":"hello"}`, Encode(NewSystemNotice("hello")))
	assert.JSONEq(t, `{"type":"chat","from":"alice","text":"hi"}`, Encode(Chat{From: "alice", Text: "hi"}))
	assert.JSONEq(t, `{"type":"roster_request"}`, Encode(RosterRequest{}))
	assert.JSONEq(t, `{"type":"roster"}`, Encode(Roster{}))
	assert.JSONEq(t, `{"type":"roster","names":[]}`, Encode(Roster{Names: []string{}}))
	assert.JSONEq(t, `{"type":"command","raw":"/me waves"}`, Encode(Command{Raw: "/me waves"}))
}

func TestEncode_PointerVariants(t *testing.T) {
	assert.Equal(t, Encode(Chat{From: "alice", Text: "hi"}), Encode(&Chat{From: "alice", Text: "hi"}))
	assert.Equal(t, Encode(Roster{Names: []string{"a"}}), Encode(&Roster{Names: []string{"a"}}))
	assert.Equal(t, "[alice] hi", Format(&Chat{From: "alice", Text: "hi"}))
	assert.Equal(t, "(command) /away", Format(&Command{Raw: "/away"}))

	decoded, err := Decode(Encode(&Notice{Category: "INFO", Text: "x"}))
	require.NoError(t, err)
	assert.Equal(t, Notice{Category: "INFO", Text: "x"}, decoded)
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	env, err := Decode(`{"type":"chat","from":"alice","text":"hi","priority":7,"meta":{"a":1}}`)
	require.NoError(t, err)
	assert.Equal(t, Chat{From: "alice", Text: "hi"}, env)
}

func TestDecode_Errors(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		_, err := Decode(`{invalid json`)
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Empty(t, decodeErr.Type)
	})

	t.Run("plain text", func(t *testing.T) {
		_, err := Decode("hello there")
		require.Error(t, err)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := Decode("{\"type\":\"chat\",\"text\":\"\xff\xfe\"}")
		assert.ErrorIs(t, err, ErrInvalidUTF8)

		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr))
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := Decode(`{"text":"hi"}`)
		assert.ErrorIs(t, err, ErrMissingType)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Decode(`{"type":"whisper","text":"psst"}`)
		assert.ErrorIs(t, err, ErrUnknownType)

		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, Type("whisper"), decodeErr.Type)
		assert.Contains(t, err.Error(), "whisper")
	})
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "[SYSTEM] *** alice has joined the chat ***", Format(JoinNotice("alice")))
	assert.Equal(t, "[SYSTEM] *** alice has left the chat ***", Format(LeaveNotice("alice")))
	assert.Equal(t, "[alice] hi", Format(Chat{From: "alice", To: "bob", Text: "hi"}))
	assert.Equal(t, "Current users: alice, bob", Format(Roster{Names: []string{"alice", "bob"}}))
	assert.Equal(t, "plain", Format(Notice{Text: "plain"}))
}
