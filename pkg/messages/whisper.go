package messages

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/async"
	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
)

// MessageStream is the stream returned by ListenTo.
type MessageStream = async.MessageEvent[Message]

const (
	defaultTTL      = 100
	defaultPriority = 1000
)

// WhisperPost is the shh_post request. Topics and Payload are hex.
type WhisperPost struct {
	From     string
	Topics   []string
	Payload  string
	TTL      int
	Priority int
}

// WhisperEnvelope is one message received by a whisper filter.
type WhisperEnvelope struct {
	From    string
	To      string
	Topics  []string
	Payload string
	Sent    int64
	TTL     int
	Hash    string
}

// Watcher stops a whisper filter.
type Watcher interface {
	StopWatching() error
}

// WhisperTransport is the shh client.
type WhisperTransport interface {
	Version(ctx context.Context) (string, error)
	NewIdentity(ctx context.Context) (string, error)
	Post(ctx context.Context, msg WhisperPost) error
	Filter(ctx context.Context, topics []string, cb func(WhisperEnvelope, error)) (Watcher, error)
}

// Whisper is the whisper backend. Topics and payloads travel hex encoded;
// payloads are JSON before encoding.
type Whisper struct {
	transport WhisperTransport
	logger    *zap.Logger

	mu       sync.RWMutex
	identity string
}

// NewWhisper wraps transport. Call Init to probe the node.
func NewWhisper(transport WhisperTransport, logger *zap.Logger) *Whisper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Whisper{transport: transport, logger: logger}
}

// Init checks the node's whisper version and creates the default identity
// when the version is supported. Unsupported or missing whisper is only
// logged.
func (w *Whisper) Init(ctx context.Context) {
	version, err := w.transport.Version(ctx)
	if err != nil {
		w.logger.Info("whisper not available", zap.Error(err))
		return
	}
	if major, ok := majorVersion(version); ok && major >= 5 {
		w.logger.Info("this version of whisper is not supported yet; try a version of geth below 1.6.1",
			zap.String("version", version))
		return
	}

	identity, err := w.transport.NewIdentity(ctx)
	if err != nil {
		w.logger.Info("whisper identity not created", zap.Error(err))
		return
	}
	w.mu.Lock()
	w.identity = identity
	w.mu.Unlock()
	w.logger.Debug("Whisper identity created", zap.String("identity", identity))
}

// Identity returns the default sender identity, empty until Init created one.
func (w *Whisper) Identity() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.identity
}

func majorVersion(v string) (int, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(v, '.'); i >= 0 {
		v = v[:i]
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// SendMessage posts the message. Missing topics or data fail before any
// transport call.
func (w *Whisper) SendMessage(ctx context.Context, opts SendOptions) error {
	topics, payload, err := opts.prepare()
	if err != nil {
		return err
	}

	identity := opts.Identity
	if identity == "" {
		identity = w.Identity()
	}
	if identity == "" {
		identity, err = w.transport.NewIdentity(ctx)
		if err != nil {
			return embarkerrors.NewTransportError("shh_newIdentity", err)
		}
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	priority := opts.Priority
	if priority == 0 {
		priority = defaultPriority
	}

	msg := WhisperPost{
		From:     identity,
		Topics:   encodeTopics(topics),
		Payload:  hexutil.Encode(payload),
		TTL:      ttl,
		Priority: priority,
	}
	if err := w.transport.Post(ctx, msg); err != nil {
		return embarkerrors.NewTransportError("shh_post", err)
	}
	return nil
}

// ListenTo opens a filter on the topics. Envelopes carrying none of the
// requested topics are dropped.
func (w *Whisper) ListenTo(ctx context.Context, opts ListenOptions) (*MessageStream, error) {
	topics, err := opts.topics()
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[t] = true
	}

	stream := async.NewMessageEvent[Message]()
	watcher, err := w.transport.Filter(ctx, encodeTopics(topics), func(env WhisperEnvelope, err error) {
		if err != nil {
			stream.Fail(embarkerrors.NewTransportError("shh_filter", err))
			return
		}
		msg, ok, err := decodeEnvelope(env, wanted)
		if err != nil {
			stream.Fail(err)
			return
		}
		if ok {
			stream.Emit(msg)
		}
	})
	if err != nil {
		return nil, embarkerrors.NewTransportError("shh_newFilter", err)
	}

	stream.Bind(func() {
		if err := watcher.StopWatching(); err != nil {
			w.logger.Debug("Failed to stop whisper filter", zap.Error(err))
		}
	})
	return stream, nil
}

func encodeTopics(topics []string) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = hexutil.Encode([]byte(t))
	}
	return out
}

func decodeEnvelope(env WhisperEnvelope, wanted map[string]bool) (Message, bool, error) {
	msg := Message{From: env.From, Raw: env}
	for _, hexTopic := range env.Topics {
		raw, err := hexutil.Decode(hexTopic)
		if err != nil {
			continue
		}
		topic := string(raw)
		msg.Topics = append(msg.Topics, topic)
		if msg.Topic == "" && wanted[topic] {
			msg.Topic = topic
		}
	}
	if msg.Topic == "" {
		return Message{}, false, nil
	}

	payload, err := hexutil.Decode(env.Payload)
	if err != nil {
		return Message{}, false, embarkerrors.NewInputError("payload", "payload is not hex: "+err.Error(), env.Payload)
	}
	data, err := decodeData(payload)
	if err != nil {
		return Message{}, false, embarkerrors.NewInputError("payload", "payload is not JSON: "+err.Error(), string(payload))
	}
	msg.Data = data
	if env.Sent > 0 {
		msg.Time = time.Unix(env.Sent, 0)
	}
	return msg, true, nil
}
