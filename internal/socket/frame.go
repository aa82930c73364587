package socket

import "encoding/json"

// Inbound frame wire shape:
// {"data": {"eventType", "activity": {"verb", "actor": {"emailAddress"}, "id"}}}
type frame struct {
	Data frameData `json:"data"`
}

type frameData struct {
	EventType string   `json:"eventType"`
	Activity  activity `json:"activity"`
}

type activity struct {
	ID    string `json:"id"`
	Verb  string `json:"verb"`
	Actor actor  `json:"actor"`
}

type actor struct {
	EmailAddress string `json:"emailAddress"`
}

const (
	eventTypeActivity = "conversation.activity"
	verbPost          = "post"
)

// Notification is the decoded envelope of an accepted frame. It lives for
// one dispatch cycle and is never persisted.
type Notification struct {
	MessageRef string // opaque message reference carried by the activity
	ActorEmail string
}

// decodeNotification decodes a raw socket frame and applies the forwarding
// filter. A frame is forwarded iff its event type is "conversation.activity",
// the activity verb is "post", and the actor is not in the ignore-set.
// Malformed frames yield nil and are dropped.
func decodeNotification(raw []byte, ignore map[string]struct{}) *Notification {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if f.Data.EventType != eventTypeActivity {
		return nil
	}
	if f.Data.Activity.Verb != verbPost {
		return nil
	}
	if f.Data.Activity.ID == "" {
		return nil
	}
	if _, ok := ignore[f.Data.Activity.Actor.EmailAddress]; ok {
		return nil
	}
	return &Notification{
		MessageRef: f.Data.Activity.ID,
		ActorEmail: f.Data.Activity.Actor.EmailAddress,
	}
}
