package chat

import "encoding/json"

// WebhookPayload is the envelope the messaging platform delivers. One request
// may batch several events.
type WebhookPayload struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent is one platform event. Only text message events get a reply;
// everything else is skipped.
type WebhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Timestamp  int64  `json:"timestamp"`
	Source     struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// IsTextMessage reports whether the event is a user text message with a
// usable sender and reply token.
func (e WebhookEvent) IsTextMessage() bool {
	return e.Type == "message" && e.Message.Type == "text" &&
		e.Source.UserID != "" && e.ReplyToken != ""
}

// ParsePayload decodes a verified webhook body.
func ParsePayload(body []byte) (WebhookPayload, error) {
	var payload WebhookPayload
	err := json.Unmarshal(body, &payload)
	return payload, err
}
