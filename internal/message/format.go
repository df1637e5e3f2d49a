package message

import (
	"fmt"
	"strings"
)

// Format renders an envelope as a single line for terminal clients.
func Format(env Envelope) string {
	switch m := deref(env).(type) {
	case Notice:
		if m.Category == "" {
			return m.Text
		}
		return fmt.Sprintf("[%s] %s", m.Category, m.Text)
	case Chat:
		return fmt.Sprintf("[%s] %s", m.From, m.Text)
	case RosterRequest:
		return "(roster requested)"
	case Roster:
		return "Current users: " + strings.Join(m.Names, ", ")
	case Command:
		return "(command) " + m.Raw
	default:
		return ""
	}
}
