package messages

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
)

// Provider names a messaging network.
type Provider string

const (
	ProviderWhisper Provider = "whisper"
	ProviderOrbit   Provider = "orbit"
)

// ParseProvider matches name case-insensitively against the known providers.
func ParseProvider(name string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(name))) {
	case ProviderWhisper:
		return ProviderWhisper, true
	case ProviderOrbit:
		return ProviderOrbit, true
	default:
		return "", false
	}
}

// ProviderOptions locate the node behind a provider. Zero values select
// localhost with the provider's default port.
type ProviderOptions struct {
	Server string
	Port   int
}

// SendOptions describe one outgoing message. Topic wins over Topics and
// Data over Payload.
type SendOptions struct {
	Topic    string
	Topics   []string
	Data     any
	Payload  any
	Identity string
	TTL      int
	Priority int
}

// ListenOptions select the topics to receive. Topic wins over Topics.
type ListenOptions struct {
	Topic  string
	Topics []string
}

// Message is one delivered message.
type Message struct {
	Topic  string
	Topics []string
	Data   any
	From   string
	Time   time.Time
	Raw    any
}

// Backend is one messaging network as seen by the facade.
type Backend interface {
	SendMessage(ctx context.Context, opts SendOptions) error
	ListenTo(ctx context.Context, opts ListenOptions) (*MessageStream, error)
}

func normalizeTopics(topic string, topics []string) []string {
	if topic != "" {
		return []string{topic}
	}
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// prepare validates opts before any transport call and encodes the data
// as JSON.
func (o SendOptions) prepare() ([]string, []byte, error) {
	topics := normalizeTopics(o.Topic, o.Topics)
	if len(topics) == 0 {
		return nil, nil, embarkerrors.MissingOption("topic")
	}
	data := o.Data
	if data == nil {
		data = o.Payload
	}
	if data == nil {
		return nil, nil, embarkerrors.MissingOption("data")
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, nil, embarkerrors.NewInputError("data", "data is not serializable: "+err.Error(), data)
	}
	return topics, encoded, nil
}

func (o ListenOptions) topics() ([]string, error) {
	topics := normalizeTopics(o.Topic, o.Topics)
	if len(topics) == 0 {
		return nil, embarkerrors.MissingOption("topic")
	}
	return topics, nil
}

func decodeData(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
