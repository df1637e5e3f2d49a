package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nfrund/relay/internal/message"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		line string
		want message.Envelope
	}{
		{"", nil},
		{"   ", nil},
		{"/users", message.RosterRequest{}},
		{" /users ", message.RosterRequest{}},
		{"/cmd kick bob", message.Command{Raw: "kick bob"}},
		{"hello there", message.Chat{Text: "hello there"}},
		{"/unknown", message.Chat{Text: "/unknown"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, parseInput(tt.line))
		})
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	assert.NoError(t, rootCmd.Execute())
	assert.Equal(t, "relay v"+version+"\n", out.String())
}

func TestEventsCommand_JSON(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"events", "--format", "json"})
	defer rootCmd.SetArgs(nil)

	assert.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"name": "relay.participant.joined"`)
	assert.Contains(t, out.String(), `"name": "relay.command.received"`)
}

func TestRootHelpListsEverySubcommand(t *testing.T) {
	for _, sub := range rootCmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		assert.Contains(t, rootCmd.Long, "  "+sub.Name()+" ", "root help is missing %s", sub.Name())
	}
}
