package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeNotification(t *testing.T) {
	ignore := map[string]struct{}{"bot@webex.bot": {}}

	tests := []struct {
		name    string
		raw     string
		forward bool
	}{
		{
			name:    "posted activity from another account is forwarded",
			raw:     `{"data":{"eventType":"conversation.activity","activity":{"verb":"post","id":"msg-1","actor":{"emailAddress":"user@example.com"}}}}`,
			forward: true,
		},
		{
			name:    "wrong event type is dropped",
			raw:     `{"data":{"eventType":"conversation.typing","activity":{"verb":"post","id":"msg-1","actor":{"emailAddress":"user@example.com"}}}}`,
			forward: false,
		},
		{
			name:    "wrong verb is dropped",
			raw:     `{"data":{"eventType":"conversation.activity","activity":{"verb":"share","id":"msg-1","actor":{"emailAddress":"user@example.com"}}}}`,
			forward: false,
		},
		{
			name:    "own alias is dropped",
			raw:     `{"data":{"eventType":"conversation.activity","activity":{"verb":"post","id":"msg-1","actor":{"emailAddress":"bot@webex.bot"}}}}`,
			forward: false,
		},
		{
			name:    "missing message reference is dropped",
			raw:     `{"data":{"eventType":"conversation.activity","activity":{"verb":"post","actor":{"emailAddress":"user@example.com"}}}}`,
			forward: false,
		},
		{
			name:    "malformed json is dropped",
			raw:     `{"data": not json`,
			forward: false,
		},
		{
			name:    "empty frame is dropped",
			raw:     `{}`,
			forward: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := decodeNotification([]byte(tt.raw), ignore)
			if !tt.forward {
				assert.Nil(t, n)
				return
			}
			assert.NotNil(t, n)
			assert.Equal(t, "msg-1", n.MessageRef)
			assert.Equal(t, "user@example.com", n.ActorEmail)
		})
	}
}
