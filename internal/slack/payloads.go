// SPDX-License-Identifier: MIT

package slack

import "encoding/json"

// EventCallback is the outer envelope of an Events API delivery.
type EventCallback struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"` // url_verification handshake
	Event     Event  `json:"event"`
}

// Event is the inner event of an event_callback; the bot only reacts to
// app_mention.
type Event struct {
	Type    string `json:"type"`
	User    string `json:"user"`
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// InteractionPayload is the form-encoded payload Slack posts when a block
// action (button click) fires.
type InteractionPayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
	Actions []struct {
		Value          string `json:"value"`
		SelectedOption struct {
			Value string `json:"value"`
		} `json:"selected_option"`
	} `json:"actions"`
}

// ParseInteractionPayload decodes the JSON document from the webhook's
// "payload" form field.
func ParseInteractionPayload(raw []byte) (InteractionPayload, error) {
	var p InteractionPayload
	err := json.Unmarshal(raw, &p)
	return p, err
}

// ActionRaw returns the clicked element's value, falling back to the
// selected option for select menus.
func (p InteractionPayload) ActionRaw() string {
	if len(p.Actions) == 0 {
		return ""
	}
	if v := p.Actions[0].Value; v != "" {
		return v
	}
	return p.Actions[0].SelectedOption.Value
}
