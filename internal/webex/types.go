package webex

// Device represents a device registration on the platform. The registration
// binds this bot process to a websocket endpoint for push notifications.
type Device struct {
	Name           string `json:"name"`
	DeviceName     string `json:"deviceName"`
	DeviceType     string `json:"deviceType"`
	Model          string `json:"model"`
	LocalizedModel string `json:"localizedModel"`
	SystemName     string `json:"systemName"`
	SystemVersion  string `json:"systemVersion"`
	URL            string `json:"url"`          // resource URL of the registration itself
	WebSocketURL   string `json:"webSocketUrl"` // push notification endpoint
}

// deviceList is the wire shape of the device registry listing
type deviceList struct {
	Devices []Device `json:"devices"`
}

// Person represents an account on the platform
type Person struct {
	ID          string   `json:"id"`
	Emails      []string `json:"emails"`
	DisplayName string   `json:"displayName"`
}

// Message represents a full message fetched via the public REST API
type Message struct {
	ID          string   `json:"id"`
	RoomID      string   `json:"roomId"`
	PersonID    string   `json:"personId"`
	PersonEmail string   `json:"personEmail"`
	Text        string   `json:"text"`
	Markdown    string   `json:"markdown,omitempty"`
	Files       []string `json:"files,omitempty"`
}

// messageRequest is the wire shape of a message creation call
type messageRequest struct {
	RoomID   string   `json:"roomId"`
	Text     string   `json:"text,omitempty"`
	Markdown string   `json:"markdown,omitempty"`
	Files    []string `json:"files,omitempty"`
}
