package messages

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toadkicker/embark-framework/pkg/async"
	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
	"github.com/toadkicker/embark-framework/pkg/logging"
)

// Post is a message as stored by the orbit transport.
type Post struct {
	Content json.RawMessage `json:"content"`
	From    string          `json:"from"`
	Channel string          `json:"channel"`
	Time    time.Time       `json:"ts"`
}

// OrbitTransport is the channel client. OnMessage handlers see every
// channel the session receives, not only the joined ones.
type OrbitTransport interface {
	Connect(ctx context.Context, username string) error
	Join(ctx context.Context, channel string) error
	Send(ctx context.Context, channel string, content json.RawMessage) error
	OnMessage(fn func(channel, ref string)) (unsubscribe func())
	GetPost(ctx context.Context, ref string) (*Post, error)
}

// Orbit is the orbit backend. Several topics map to one channel named by
// joining them with ",".
type Orbit struct {
	transport OrbitTransport
	logger    *zap.Logger
}

// NewOrbit wraps a connected transport.
func NewOrbit(transport OrbitTransport, logger *zap.Logger) *Orbit {
	logger = logging.OrNop(logger)
	return &Orbit{transport: transport, logger: logger}
}

func channelOf(topics []string) string {
	return strings.Join(topics, ",")
}

// SendMessage joins the channel and sends the data. Missing topics or
// data fail before any transport call.
func (o *Orbit) SendMessage(ctx context.Context, opts SendOptions) error {
	topics, payload, err := opts.prepare()
	if err != nil {
		return err
	}
	channel := channelOf(topics)

	if err := o.transport.Join(ctx, channel); err != nil {
		return embarkerrors.NewTransportError("join", err)
	}
	if err := o.transport.Send(ctx, channel, payload); err != nil {
		return embarkerrors.NewTransportError("send", err)
	}
	return nil
}

// ListenTo joins the channel and delivers its posts. The transport hands
// over messages of every channel, so anything not on exactly this channel
// is discarded here.
func (o *Orbit) ListenTo(ctx context.Context, opts ListenOptions) (*MessageStream, error) {
	topics, err := opts.topics()
	if err != nil {
		return nil, err
	}
	channel := channelOf(topics)

	if err := o.transport.Join(ctx, channel); err != nil {
		return nil, embarkerrors.NewTransportError("join", err)
	}

	// ctx bounds the join only; the stream lives until Cancel.
	fetchCtx := context.WithoutCancel(ctx)
	stream := async.NewMessageEvent[Message]()
	unsubscribe := o.transport.OnMessage(func(ch, ref string) {
		if ch != channel {
			return
		}
		post, err := o.transport.GetPost(fetchCtx, ref)
		if err != nil {
			stream.Fail(embarkerrors.NewTransportError("getPost", err))
			return
		}
		data, err := decodeData(post.Content)
		if err != nil {
			stream.Fail(embarkerrors.NewInputError("content", "post content is not JSON: "+err.Error(), ref))
			return
		}
		stream.Emit(Message{
			Topic:  ch,
			Topics: topics,
			Data:   data,
			From:   post.From,
			Time:   post.Time,
			Raw:    post,
		})
	})
	stream.Bind(unsubscribe)

	o.logger.Debug("Listening on channel", zap.String("channel", channel))
	return stream, nil
}
