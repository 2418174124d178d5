// SPDX-License-Identifier: MIT

package slack

import (
	"fmt"
	"strings"

	"github.com/raafi-4z1/slack-service-bot/internal/config"
)

// Text is a Block Kit text object.
type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Button is a Block Kit button element. The Value field carries the encoded
// interaction value the bot parses back on click.
type Button struct {
	Type  string `json:"type"`
	Style string `json:"style,omitempty"`
	Text  Text   `json:"text"`
	Value string `json:"value"`
}

// Block is a Block Kit layout block; section blocks carry Text, actions
// blocks carry Elements.
type Block struct {
	Type     string   `json:"type"`
	Text     *Text    `json:"text,omitempty"`
	Elements []Button `json:"elements,omitempty"`
}

func mrkdwn(text string) *Text {
	return &Text{Type: "mrkdwn", Text: text}
}

func plain(text string) Text {
	return Text{Type: "plain_text", Text: text}
}

func section(text string) Block {
	return Block{Type: "section", Text: mrkdwn(text)}
}

func actions(elements ...Button) Block {
	return Block{Type: "actions", Elements: elements}
}

func button(label, value string) Button {
	return Button{Type: "button", Text: plain(label), Value: value}
}

func styledButton(style, label, value string) Button {
	b := button(label, value)
	b.Style = style
	return b
}

// ActionValue is a parsed interaction button value. Values are encoded as
// colon-separated fields with the kind first, e.g.
// "action_exec:restart:kibana:U123".
type ActionValue struct {
	Kind       string
	ServiceKey string
	Action     string
	Target     string
	Initiator  string
}

// ParseActionValue decodes a button value. The second return is false for
// values the bot does not understand.
func ParseActionValue(value string) (ActionValue, bool) {
	parts := strings.Split(value, ":")
	kind := parts[0]

	at := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	switch kind {
	case "select_service", "open_actions":
		return ActionValue{Kind: kind, ServiceKey: at(1), Initiator: at(2)}, true
	case "action_exec", "confirm_yes", "confirm_no":
		return ActionValue{Kind: kind, Action: at(1), ServiceKey: at(2), Initiator: at(3)}, true
	case "back":
		return ActionValue{Kind: kind, Target: at(1), ServiceKey: at(2), Initiator: at(3)}, true
	case "exit":
		return ActionValue{Kind: kind, Initiator: at(1)}, true
	default:
		return ActionValue{}, false
	}
}

// ServiceMenu renders the top-level service picker.
func ServiceMenu(services []config.Service, initiatorID string) []Block {
	elements := make([]Button, 0, len(services)+1)
	for _, svc := range services {
		elements = append(elements, button(
			fmt.Sprintf("%s %s", svc.Icon, svc.Label),
			fmt.Sprintf("select_service:%s:%s", svc.Key, initiatorID),
		))
	}
	elements = append(elements, styledButton("danger", "❌ Exit", "exit:"+initiatorID))

	return []Block{
		section("*Pilih Service:*"),
		actions(elements...),
	}
}

// ServiceStatusMenu renders one service with its observed status.
func ServiceStatusMenu(svc config.Service, status, initiatorID string) []Block {
	return []Block{
		section(fmt.Sprintf("*%s %s*\nStatus: *%s*", svc.Icon, svc.Label, strings.ToUpper(status))),
		actions(
			button("➡️ Lihat Action", fmt.Sprintf("open_actions:%s:%s", svc.Key, initiatorID)),
			button("🔙 Kembali", "back:service_list:"+initiatorID),
			styledButton("danger", "❌ Exit", "exit:"+initiatorID),
		),
	}
}

// ServiceActionsMenu renders the lifecycle actions available for the
// service's current status: a running service can be stopped or restarted,
// anything else can only be started.
func ServiceActionsMenu(svc config.Service, status, initiatorID string) []Block {
	var elements []Button
	if status == "running" {
		elements = append(elements,
			button("⏹ Stop Service", fmt.Sprintf("action_exec:stop:%s:%s", svc.Key, initiatorID)),
			button("🔄 Restart Service", fmt.Sprintf("action_exec:restart:%s:%s", svc.Key, initiatorID)),
		)
	} else {
		elements = append(elements,
			button("▶️ Start Service", fmt.Sprintf("action_exec:start:%s:%s", svc.Key, initiatorID)),
		)
	}
	elements = append(elements,
		button("🔙 Kembali", fmt.Sprintf("back:service_status:%s:%s", svc.Key, initiatorID)),
		styledButton("danger", "❌ Exit", "exit:"+initiatorID),
	)

	return []Block{
		section(fmt.Sprintf("*Action untuk %s %s*", svc.Icon, svc.Label)),
		actions(elements...),
	}
}

// ConfirmBlocks renders the yes/no approval prompt.
func ConfirmBlocks(action, serviceKey, initiatorTag string) []Block {
	if initiatorTag == "" {
		initiatorTag = "<unknown>"
	}
	return []Block{
		section(fmt.Sprintf("⚠️ Konfirmasi untuk '/%s:%s'\nDiminta oleh: %s\nTekan *Ya* untuk melanjutkan.",
			action, serviceKey, initiatorTag)),
		actions(
			styledButton("primary", "Ya", fmt.Sprintf("confirm_yes:%s:%s", action, serviceKey)),
			styledButton("danger", "Tidak", fmt.Sprintf("confirm_no:%s:%s", action, serviceKey)),
		),
	}
}
