package messages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
)

type dialRecorder struct {
	whisper    *fakeWhisper
	orbit      *fakeOrbit
	urls       []string
	whisperErr error
	orbitErr   error
}

func (d *dialRecorder) options() []Option {
	return []Option{
		WithWhisperDialer(func(ctx context.Context, url string) (WhisperTransport, error) {
			d.urls = append(d.urls, url)
			if d.whisperErr != nil {
				return nil, d.whisperErr
			}
			return d.whisper, nil
		}),
		WithOrbitDialer(func(ctx context.Context, apiURL string) (OrbitTransport, error) {
			d.urls = append(d.urls, apiURL)
			if d.orbitErr != nil {
				return nil, d.orbitErr
			}
			return d.orbit, nil
		}),
	}
}

func newRecorder() *dialRecorder {
	return &dialRecorder{whisper: newFakeWhisper(), orbit: newFakeOrbit()}
}

func TestSetProviderUnknownFailsImmediately(t *testing.T) {
	d := newRecorder()
	m := New(nil, d.options()...)

	err := m.SetProvider(context.Background(), "carrier-pigeon", nil)
	require.Error(t, err)
	assert.Equal(t, "Unknown message provider", err.Error())
	assert.ErrorIs(t, err, embarkerrors.ErrUnknownProvider)
	assert.Empty(t, m.Provider())
	assert.Empty(t, d.urls)
}

func TestSetProviderWhisper(t *testing.T) {
	d := newRecorder()
	m := New(nil, d.options()...)

	require.NoError(t, m.SetProvider(context.Background(), "Whisper", nil))
	assert.Equal(t, ProviderWhisper, m.Provider())
	assert.Equal(t, []string{"http://localhost:8545"}, d.urls)

	w, ok := m.Backend().(*Whisper)
	require.True(t, ok)
	assert.Eventually(t, func() bool { return w.Identity() == "0x04identity" }, time.Second, time.Millisecond)

	require.NoError(t, m.SetProvider(context.Background(), "whisper", &ProviderOptions{Server: "node", Port: 8546}))
	assert.Equal(t, "http://node:8546", d.urls[1])
}

func TestSetProviderOrbit(t *testing.T) {
	d := newRecorder()
	account := common.HexToAddress("0x0000000000000000000000000000000000000007")
	m := New(nil, append(d.options(), WithAccounts(func(context.Context) ([]common.Address, error) {
		return []common.Address{account}, nil
	}))...)

	require.NoError(t, m.SetProvider(context.Background(), "ORBIT", &ProviderOptions{Server: "ipfs-node", Port: 5002}))
	assert.Equal(t, ProviderOrbit, m.Provider())
	assert.Equal(t, []string{"http://ipfs-node:5002"}, d.urls)
	assert.Equal(t, account.Hex(), d.orbit.username)
}

func TestSetProviderOrbitRandomName(t *testing.T) {
	d := newRecorder()
	m := New(nil, d.options()...)

	require.NoError(t, m.SetProvider(context.Background(), "orbit", nil))
	assert.Equal(t, []string{"http://localhost:5001"}, d.urls)
	assert.Len(t, d.orbit.username, 12)
}

func TestSetProviderFailureClearsBackend(t *testing.T) {
	d := newRecorder()
	m := New(nil, d.options()...)
	require.NoError(t, m.SetProvider(context.Background(), "orbit", nil))

	d.whisperErr = errors.New("dial failed")
	err := m.SetProvider(context.Background(), "whisper", nil)
	assert.True(t, embarkerrors.IsConnectionError(err))
	assert.Nil(t, m.Backend())

	err = m.SendMessage(context.Background(), SendOptions{Topic: "t", Data: 1})
	assert.True(t, embarkerrors.IsConnectionError(err))
}

func TestSetProviderLastCallWins(t *testing.T) {
	whisper := newFakeWhisper()
	release := make(chan struct{})
	dialing := make(chan struct{})
	m := New(nil,
		WithWhisperDialer(func(ctx context.Context, url string) (WhisperTransport, error) {
			return whisper, nil
		}),
		WithOrbitDialer(func(ctx context.Context, apiURL string) (OrbitTransport, error) {
			close(dialing)
			<-release
			return nil, errors.New("ipfs unreachable")
		}),
	)

	slow := make(chan error, 1)
	go func() { slow <- m.SetProvider(context.Background(), "orbit", nil) }()
	<-dialing

	require.NoError(t, m.SetProvider(context.Background(), "whisper", nil))
	close(release)
	assert.True(t, embarkerrors.IsConnectionError(<-slow))

	assert.Equal(t, ProviderWhisper, m.Provider())
	require.NoError(t, m.SendMessage(context.Background(), SendOptions{Topic: "t", Data: 1}))
}

func TestFacadeWithoutProvider(t *testing.T) {
	m := New(nil)

	err := m.SendMessage(context.Background(), SendOptions{Topic: "t", Data: 1})
	assert.ErrorIs(t, err, embarkerrors.ErrNoConnection)

	_, err = m.ListenTo(context.Background(), ListenOptions{Topic: "t"})
	assert.ErrorIs(t, err, embarkerrors.ErrNoConnection)

	err = m.SetProvider(context.Background(), "orbit", nil)
	assert.True(t, embarkerrors.IsConnectionError(err))
}

func TestFacadeForwardsToActiveBackend(t *testing.T) {
	d := newRecorder()
	m := New(nil, d.options()...)
	require.NoError(t, m.SetProvider(context.Background(), "orbit", nil))

	require.NoError(t, m.SendMessage(context.Background(), SendOptions{Topic: "news", Data: "hi"}))
	assert.Len(t, d.orbit.sent["news"], 1)

	stream, err := m.ListenTo(context.Background(), ListenOptions{Topic: "news"})
	require.NoError(t, err)
	got := make(chan Message, 1)
	stream.Then(func(msg Message) { got <- msg })
	d.orbit.publish("news", "ref", `"hello"`)
	assert.Equal(t, "hello", (<-got).Data)
}

func TestParseProvider(t *testing.T) {
	p, ok := ParseProvider("WHISPER")
	assert.True(t, ok)
	assert.Equal(t, ProviderWhisper, p)

	_, ok = ParseProvider("")
	assert.False(t, ok)
}
