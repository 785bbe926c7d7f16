package broker

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type sink struct {
	sent map[string][]string
}

func (s *sink) send(socketId string, m *comm.WSMessage) error {
	if socketId == "gone" {
		return errors.New("socket gone not connected")
	}
	s.sent[socketId] = append(s.sent[socketId], m.Type)
	return nil
}

func newTestBroker() (*Broker, *sink) {
	s := &sink{sent: make(map[string][]string)}
	rooms := map[string][]string{"game:1": {"s1", "s2", "gone"}}
	callers := map[string][]string{"alice": {"s1", "s3"}, "bob": {"s4"}}
	b := NewBroker(nil, s.send,
		func(room string) ([]string, bool) { r, ok := rooms[room]; return r, ok },
		func(caller string) []string { return callers[caller] },
	)
	return b, s
}

func keys(m map[string][]string) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestHandleEventFanOut(t *testing.T) {
	b, s := newTestBroker()

	ev, _ := json.Marshal(comm.GameEvent{Type: "game-finished", GameId: 1, Winner: "bob"})
	b.HandleEvent(ev)
	assert.Equal(t, []string{"s1", "s2", "s4"}, keys(s.sent))

	s.sent = make(map[string][]string)
	ev, _ = json.Marshal(comm.GameEvent{Type: "move-committed", GameId: 1, Account: "alice"})
	b.HandleEvent(ev)
	// s1 is both watching and alice's, it still gets one copy
	assert.Equal(t, []string{"game-event"}, s.sent["s1"])
	assert.Equal(t, []string{"s1", "s2", "s3"}, keys(s.sent))
}

func TestWithdrawEventOnlyReachesAccount(t *testing.T) {
	b, s := newTestBroker()

	ev, _ := json.Marshal(comm.GameEvent{Type: "balance-withdrawn", GameId: 0, Account: "bob", Amount: 4})
	b.HandleEvent(ev)
	assert.Equal(t, []string{"s4"}, keys(s.sent))
}

func TestHandleResponse(t *testing.T) {
	b, s := newTestBroker()

	msg, _ := json.Marshal(comm.WSMessage{Type: "get-game-response", SocketId: "s2"})
	b.HandleResponse(msg)
	assert.Equal(t, []string{"get-game-response"}, s.sent["s2"])

	msg, _ = json.Marshal(comm.WSMessage{Type: "get-game", SocketId: "s2"})
	b.HandleResponse(msg)
	b.HandleResponse([]byte("not json"))
	assert.Len(t, s.sent["s2"], 1)
}
