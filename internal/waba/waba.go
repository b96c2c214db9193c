// Package waba holds the WhatsApp Business message payloads shared by the
// Cloud API and 360dialog drivers.
package waba

import (
	"strings"

	"github.com/rbaliyan/notify/internal/httpx"
)

// TextMessage is a free-form text message.
type TextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             Text   `json:"text"`
}

// Text is the body of a TextMessage.
type Text struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

// NewTextMessage builds a text message. The recipient is sent without the "+" prefix.
func NewTextMessage(to, body string) TextMessage {
	return TextMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "text",
		Text:             Text{Body: body},
	}
}

// Reply is the answer to a message send.
type Reply struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
	Meta *struct {
		DeveloperMessage string `json:"developer_message"`
	} `json:"meta"`
}

// Parse decodes r and reports the message id, or an error description.
func Parse(r *httpx.Reply) (id string, detail string) {
	var out Reply
	if err := r.Decode(&out); err != nil {
		return "", "invalid response: " + err.Error()
	}
	switch {
	case out.Error != nil:
		return "", out.Error.Message
	case out.Meta != nil && out.Meta.DeveloperMessage != "":
		return "", out.Meta.DeveloperMessage
	case len(out.Messages) == 0 || out.Messages[0].ID == "":
		return "", "no message id in response"
	}
	return out.Messages[0].ID, ""
}
