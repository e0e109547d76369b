package ws

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia/internal/model"
	"github.com/ecclesia/internal/repository"
)

type fakeRoomStore struct {
	mu           sync.Mutex
	rooms        map[string]*model.ChatRoom
	participants map[string]map[string]struct{}
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		rooms:        make(map[string]*model.ChatRoom),
		participants: make(map[string]map[string]struct{}),
	}
}

func (f *fakeRoomStore) addRoom(id string, userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[id] = &model.ChatRoom{ID: id}
	f.participants[id] = make(map[string]struct{})
	for _, uid := range userIDs {
		f.participants[id][uid] = struct{}{}
	}
}

func (f *fakeRoomStore) GetByID(_ context.Context, id string) (*model.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRoomStore) IsParticipant(_ context.Context, roomID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.participants[roomID][userID]
	return ok, nil
}

func (f *fakeRoomStore) GetParticipantIDs(_ context.Context, roomID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.participants[roomID]))
	for uid := range f.participants[roomID] {
		ids = append(ids, uid)
	}
	return ids, nil
}

func (f *fakeRoomStore) AddParticipant(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.participants[roomID] == nil {
		f.participants[roomID] = make(map[string]struct{})
	}
	f.participants[roomID][userID] = struct{}{}
	return nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[string]*model.ChatMessage
	order    []string // contents in commit order
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]*model.ChatMessage)}
}

func (f *fakeMessageStore) Append(_ context.Context, roomID, senderID, content string) (*model.ChatMessage, error) {
	if content == "" {
		return nil, repository.ErrEmptyContent
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &model.ChatMessage{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	f.messages[m.ID] = m
	f.order = append(f.order, content)
	return m, nil
}

func (f *fakeMessageStore) Edit(_ context.Context, messageID, requesterID, newContent string) (*model.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.SenderID != requesterID {
		return nil, repository.ErrForbidden
	}
	now := time.Now().UTC()
	m.Content = newContent
	m.IsEdited = true
	m.UpdatedAt = &now
	cp := *m
	return &cp, nil
}

// testClient registers a connection-less client directly in the hub's maps so
// routing can be exercised without a real WebSocket.
func testClient(h *Hub, userID string) *Client {
	c := NewClient(h, nil, userID, 16)
	h.addClient(c)
	return c
}

func drain(t *testing.T, c *Client) OutgoingMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("expected an outgoing message")
		return OutgoingMessage{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected outgoing message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestHub(rooms *fakeRoomStore, msgs *fakeMessageStore) *Hub {
	return NewHub(rooms, msgs, 100, 16, nil)
}

func TestSubscribeRequiresMembership(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom("room-1", "alice")
	h := newTestHub(rooms, newFakeMessageStore())

	alice := testClient(h, "alice")
	mallory := testClient(h, "mallory")

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventSubscribe, RoomID: "room-1"})
	got := drain(t, alice)
	require.Equal(t, EventSubscribed, got.Type)
	assert.Equal(t, SubscribedPayload{RoomID: "room-1"}, got.Payload)

	h.HandleMessage(context.Background(), mallory, IncomingMessage{Type: EventSubscribe, RoomID: "room-1"})
	got = drain(t, mallory)
	assert.Equal(t, EventError, got.Type)
	assert.Equal(t, "not a participant", got.Payload)
}

func TestSubscribeUnknownRoom(t *testing.T) {
	h := newTestHub(newFakeRoomStore(), newFakeMessageStore())
	alice := testClient(h, "alice")

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventSubscribe, RoomID: "nope"})

	got := drain(t, alice)
	assert.Equal(t, EventError, got.Type)
	assert.Equal(t, "room not found", got.Payload)
}

func TestGlobalRoomAutoJoinsOnSubscribe(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom(model.GlobalRoomID)
	h := newTestHub(rooms, newFakeMessageStore())
	alice := testClient(h, "alice")

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventSubscribe, RoomID: model.GlobalRoomID})

	got := drain(t, alice)
	require.Equal(t, EventSubscribed, got.Type)
	ok, err := rooms.IsParticipant(context.Background(), model.GlobalRoomID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewMessageFansOutToSubscribers(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom("room-1", "alice", "bob")
	h := newTestHub(rooms, newFakeMessageStore())

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	carol := testClient(h, "carol")

	for _, c := range []*Client{alice, bob} {
		h.HandleMessage(context.Background(), c, IncomingMessage{Type: EventSubscribe, RoomID: "room-1"})
		drain(t, c)
	}

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventMessageNew, RoomID: "room-1", Content: "hello"})

	// Sender and subscriber both get the stored message back.
	for _, c := range []*Client{alice, bob} {
		got := drain(t, c)
		require.Equal(t, EventMessageNew, got.Type, "client %s", c.UserID())
		m, ok := got.Payload.(*model.ChatMessage)
		require.True(t, ok)
		assert.Equal(t, "hello", m.Content)
		assert.Equal(t, "alice", m.SenderID)
		assert.NotEmpty(t, m.ID)
	}

	// Participants also get a conversation list update.
	for _, c := range []*Client{alice, bob} {
		got := drain(t, c)
		require.Equal(t, EventRoomUpdated, got.Type)
		p, ok := got.Payload.(RoomUpdatedPayload)
		require.True(t, ok)
		assert.Equal(t, "room-1", p.RoomID)
		assert.Equal(t, "hello", p.LastMessage)
	}

	assertNoMessage(t, carol)
}

func TestNewMessageRejectedForNonParticipant(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom("room-1", "alice")
	msgs := newFakeMessageStore()
	h := newTestHub(rooms, msgs)
	mallory := testClient(h, "mallory")

	h.HandleMessage(context.Background(), mallory, IncomingMessage{Type: EventMessageNew, RoomID: "room-1", Content: "hi"})

	got := drain(t, mallory)
	assert.Equal(t, EventError, got.Type)
	assert.Empty(t, msgs.messages)
}

func TestEditMessageOnlyBySender(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom("room-1", "alice", "bob")
	msgs := newFakeMessageStore()
	h := newTestHub(rooms, msgs)

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventSubscribe, RoomID: "room-1"})
	drain(t, alice)

	stored, err := msgs.Append(context.Background(), "room-1", "alice", "original")
	require.NoError(t, err)

	h.HandleMessage(context.Background(), bob, IncomingMessage{Type: EventMessageEdited, MessageID: stored.ID, Content: "hacked"})
	got := drain(t, bob)
	assert.Equal(t, EventError, got.Type)
	assert.Equal(t, "can only edit own messages", got.Payload)

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventMessageEdited, MessageID: stored.ID, Content: "fixed"})
	got = drain(t, alice)
	require.Equal(t, EventMessageEdited, got.Type)
	m, ok := got.Payload.(*model.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "fixed", m.Content)
	assert.True(t, m.IsEdited)
	require.NotNil(t, m.UpdatedAt)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom("room-1", "alice", "bob")
	h := newTestHub(rooms, newFakeMessageStore())

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	for _, c := range []*Client{alice, bob} {
		h.HandleMessage(context.Background(), c, IncomingMessage{Type: EventSubscribe, RoomID: "room-1"})
		drain(t, c)
	}

	h.HandleMessage(context.Background(), bob, IncomingMessage{Type: EventUnsubscribe, RoomID: "room-1"})
	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventMessageNew, RoomID: "room-1", Content: "ping"})

	got := drain(t, alice)
	assert.Equal(t, EventMessageNew, got.Type)
	drain(t, alice) // room_updated

	// Bob still gets the list update as a participant, but not the message.
	got = drain(t, bob)
	assert.Equal(t, EventRoomUpdated, got.Type)
	assertNoMessage(t, bob)
}

func TestRemoveClientClearsSubscriptions(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom("room-1", "alice", "bob")
	h := newTestHub(rooms, newFakeMessageStore())

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	for _, c := range []*Client{alice, bob} {
		h.HandleMessage(context.Background(), c, IncomingMessage{Type: EventSubscribe, RoomID: "room-1"})
		drain(t, c)
	}

	h.removeClient(bob)

	h.mu.RLock()
	_, bobSubbed := h.rooms["room-1"][bob]
	_, bobTracked := h.subs[bob]
	h.mu.RUnlock()
	assert.False(t, bobSubbed)
	assert.False(t, bobTracked)

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventMessageNew, RoomID: "room-1", Content: "still here"})
	got := drain(t, alice)
	assert.Equal(t, EventMessageNew, got.Type)
}

func TestConnectionLimit(t *testing.T) {
	rooms := newFakeRoomStore()
	h := NewHub(rooms, newFakeMessageStore(), 1, 16, nil)

	first := testClient(h, "alice")
	second := NewClient(h, nil, "bob", 16)
	h.addClient(second)

	h.mu.RLock()
	total := h.total
	h.mu.RUnlock()
	assert.Equal(t, 1, total)

	select {
	case <-second.done:
	default:
		t.Fatal("rejected client should be closed")
	}
	first.Close()
}

func TestFanOutMatchesStorageOrder(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom("room-1", "alice", "bob", "carol")
	msgs := newFakeMessageStore()
	h := newTestHub(rooms, msgs)

	carol := NewClient(h, nil, "carol", 256)
	h.addClient(carol)
	h.HandleMessage(context.Background(), carol, IncomingMessage{Type: EventSubscribe, RoomID: "room-1"})
	drain(t, carol)

	// Two senders race; the publish lock must keep delivery in commit order.
	const perSender = 20
	var wg sync.WaitGroup
	for _, sender := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := h.PublishMessage(context.Background(), "room-1", sender, fmt.Sprintf("%s-%d", sender, i))
				assert.NoError(t, err)
			}
		}(sender)
	}
	wg.Wait()

	received := make([]string, 0, 2*perSender)
	for len(received) < 2*perSender {
		got := drain(t, carol)
		if got.Type != EventMessageNew {
			continue
		}
		m, ok := got.Payload.(*model.ChatMessage)
		require.True(t, ok)
		received = append(received, m.Content)
	}

	msgs.mu.Lock()
	committed := append([]string(nil), msgs.order...)
	msgs.mu.Unlock()
	assert.Equal(t, committed, received, "subscriber must see messages in the order the log stored them")
}

func TestSlowSubscriberIsClosed(t *testing.T) {
	h := newTestHub(newFakeRoomStore(), newFakeMessageStore())
	slow := NewClient(h, nil, "slow", 1)
	h.addClient(slow)

	h.sendToClient(slow, OutgoingMessage{Type: EventRoomUpdated})
	select {
	case <-slow.done:
		t.Fatal("client with free buffer space must stay open")
	default:
	}

	// Buffer full and nobody draining: the next send must close the client.
	h.sendToClient(slow, OutgoingMessage{Type: EventRoomUpdated})
	select {
	case <-slow.done:
	default:
		t.Fatal("client with a full send buffer should be closed")
	}
}

func TestPushBodyTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ã", 130)
	got := truncateRunes(long, 120)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 120, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))

	short := "oração"
	assert.Equal(t, short, truncateRunes(short, 120))
}

func TestGlobalRoomUpdateReachesEveryone(t *testing.T) {
	rooms := newFakeRoomStore()
	rooms.addRoom(model.GlobalRoomID)
	h := newTestHub(rooms, newFakeMessageStore())

	alice := testClient(h, "alice")
	bob := testClient(h, "bob")

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventSubscribe, RoomID: model.GlobalRoomID})
	drain(t, alice)

	h.HandleMessage(context.Background(), alice, IncomingMessage{Type: EventMessageNew, RoomID: model.GlobalRoomID, Content: "sunday service at 10"})

	got := drain(t, alice)
	assert.Equal(t, EventMessageNew, got.Type)
	got = drain(t, alice)
	assert.Equal(t, EventRoomUpdated, got.Type)

	// Bob never subscribed but still sees the conversation list update.
	got = drain(t, bob)
	assert.Equal(t, EventRoomUpdated, got.Type)
}
