package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/vedran77/spark/internal/domain"
)

// Server → client event types.
const (
	TypeNewMessage   = "newMessage"
	TypeNewLike      = "newLike"
	TypeNewMatch     = "newMatch"
	TypeMessagesRead = "messagesRead"
	TypePong         = "pong"
	TypeError        = "error"
)

// PreviewLength caps the message text shown in a push banner, in runes.
const PreviewLength = 100

// Payload is an event sent to a live connection. Encode renders it as a
// JSON object carrying a "type" field.
type Payload interface {
	Type() string
}

// Pushable payloads also render the text of their push fallback.
type Pushable interface {
	Payload
	PushText() (string, error)
}

var pushTemplates = template.Must(template.New("push").Parse(`
{{- define "newMessage" -}}
{{ .Sender }}: {{ .Preview }}
{{- end -}}
{{- define "newLike" -}}
Someone liked you! Open the app to find out who.
{{- end -}}
{{- define "newMatch" -}}
It's a match! You and {{ .Partner }} liked each other.
{{- end -}}
`))

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := pushTemplates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("rendering %s push text: %w", name, err)
	}
	return b.String(), nil
}

// Preview returns at most PreviewLength runes of text.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength])
}

// Encode renders p as the JSON sent over live connections.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", p.Type(), err)
	}
	return data, nil
}

type NewMessage struct {
	Message domain.Message `json:"message"`
	// SenderName is shown in the push banner only.
	SenderName string `json:"-"`
}

func (NewMessage) Type() string { return TypeNewMessage }

func (p NewMessage) MarshalJSON() ([]byte, error) {
	type wire NewMessage
	return json.Marshal(struct {
		Type string `json:"type"`
		wire
	}{p.Type(), wire(p)})
}

func (p NewMessage) PushText() (string, error) {
	sender := p.SenderName
	if sender == "" {
		sender = "New message"
	}
	return render(TypeNewMessage, struct{ Sender, Preview string }{sender, Preview(p.Message.Text)})
}

// NewLike tells a user someone liked them. The liker is never revealed.
type NewLike struct{}

func (NewLike) Type() string { return TypeNewLike }

func (p NewLike) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{p.Type()})
}

func (NewLike) PushText() (string, error) {
	return render(TypeNewLike, nil)
}

type MatchPartner struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type NewMatch struct {
	ChatID  string       `json:"chatId"`
	Partner MatchPartner `json:"partner"`
}

func (NewMatch) Type() string { return TypeNewMatch }

func (p NewMatch) MarshalJSON() ([]byte, error) {
	type wire NewMatch
	return json.Marshal(struct {
		Type string `json:"type"`
		wire
	}{p.Type(), wire(p)})
}

func (p NewMatch) PushText() (string, error) {
	name := p.Partner.DisplayName
	if name == "" {
		name = "someone"
	}
	return render(TypeNewMatch, struct{ Partner string }{name})
}

type MessagesRead struct {
	ChatID   string `json:"chatId"`
	ReaderID string `json:"readerId"`
}

func (MessagesRead) Type() string { return TypeMessagesRead }

func (p MessagesRead) MarshalJSON() ([]byte, error) {
	type wire MessagesRead
	return json.Marshal(struct {
		Type string `json:"type"`
		wire
	}{p.Type(), wire(p)})
}

type Pong struct{}

func (Pong) Type() string { return TypePong }

func (p Pong) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{p.Type()})
}

// Error reports a rejected client event on the live channel.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Error) Type() string { return TypeError }

func (p Error) MarshalJSON() ([]byte, error) {
	type wire Error
	return json.Marshal(struct {
		Type string `json:"type"`
		wire
	}{p.Type(), wire(p)})
}
