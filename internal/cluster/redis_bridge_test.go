package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tonerelay/internal/relay"
)

type fakeDeliverer struct {
	mu     sync.Mutex
	frames []relay.Frame
}

func (f *fakeDeliverer) Deliver(frame relay.Frame) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return 1
}

func (f *fakeDeliverer) received() []relay.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relay.Frame(nil), f.frames...)
}

func newTestBridge() *RedisBridge {
	return NewRedisBridgeWithClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "test")
}

func TestRedisBridge_HandleDeliversRemoteFrames(t *testing.T) {
	local := newTestBridge()
	remote := newTestBridge()
	require.NotEqual(t, local.Origin(), remote.Origin())

	payload := []byte(`{"action":"stop","frequency":700}`)
	encoded, err := remote.encode(relay.Frame{Type: websocket.TextMessage, Data: payload})
	require.NoError(t, err)

	d := &fakeDeliverer{}
	local.handle(string(encoded), d)

	frames := d.received()
	require.Len(t, frames, 1)
	assert.Equal(t, websocket.TextMessage, frames[0].Type)
	assert.Equal(t, payload, frames[0].Data)
}

func TestRedisBridge_HandleSkipsOwnFrames(t *testing.T) {
	b := newTestBridge()
	encoded, err := b.encode(relay.TextFrame([]byte("echo")))
	require.NoError(t, err)

	d := &fakeDeliverer{}
	b.handle(string(encoded), d)

	assert.Empty(t, d.received())
}

func TestRedisBridge_HandleIgnoresGarbage(t *testing.T) {
	b := newTestBridge()
	d := &fakeDeliverer{}

	b.handle("not json", d)
	b.handle(`{"type":1,"data":"aGk="}`, d) // no origin

	assert.Empty(t, d.received())
}

func TestRedisBridge_BinaryPayloadRoundTrip(t *testing.T) {
	b := newTestBridge()
	raw := []byte{0x00, 0x01, 0xfe, 0xff}

	encoded, err := b.encode(relay.Frame{Type: websocket.BinaryMessage, Data: raw})
	require.NoError(t, err)

	env, err := decode(string(encoded))
	require.NoError(t, err)
	assert.Equal(t, raw, env.Data)
	assert.Equal(t, websocket.BinaryMessage, env.Type)
}

func TestNewRedisBridge_InvalidURL(t *testing.T) {
	_, err := NewRedisBridge("http://not-redis", "test")
	assert.Error(t, err)
}

// RedisBridgeIntegrationSuite runs two bridges against a real Redis
type RedisBridgeIntegrationSuite struct {
	suite.Suite
	client *redis.Client
}

func (s *RedisBridgeIntegrationSuite) SetupSuite() {
	s.client = redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.T().Skip("Redis not available, skipping integration tests")
	}
}

func (s *RedisBridgeIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *RedisBridgeIntegrationSuite) TestFramesCrossInstances() {
	t := s.T()
	channel := "tonerelay:test:" + time.Now().Format("150405.000000")

	a := NewRedisBridgeWithClient(redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1}), channel)
	b := NewRedisBridgeWithClient(redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1}), channel)
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	da := &fakeDeliverer{}
	db := &fakeDeliverer{}
	go a.Run(ctx, da)
	go b.Run(ctx, db)

	// subscriptions are asynchronous; wait until both are registered
	require.Eventually(t, func() bool {
		counts, err := s.client.PubSubNumSub(ctx, channel).Result()
		return err == nil && counts[channel] == 2
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, a.Publish(ctx, relay.TextFrame([]byte(`{"action":"start","frequency":512.34}`))))

	require.Eventually(t, func() bool { return len(db.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, `{"action":"start","frequency":512.34}`, string(db.received()[0].Data))
	assert.Empty(t, da.received(), "publisher must not deliver its own frames")
}

func TestRedisBridgeIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisBridgeIntegrationSuite))
}
