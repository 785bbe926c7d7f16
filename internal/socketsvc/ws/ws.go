package ws

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Publisher forwards client commands to the game service.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// commands relayed to the game service, true when the payload names a game
var commands = map[string]bool{
	"create-game":   false,
	"join-game":     true,
	"commit-move":   true,
	"reveal-move":   true,
	"claim-timeout": true,
	"get-game":      true,
	"get-balance":   false,
	"withdraw":      false,
}

// client is one websocket connection. gorilla connections allow a single
// concurrent writer, hence the mutex.
type client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	caller string
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
	roomMap sync.Map // to keep track of roomId with socketId
	Broker  Publisher
}

func NewWs() *Ws {
	return &Ws{}
}

// RoomID is the room of everyone watching a game.
func RoomID(gameId uint64) string {
	return "game:" + strconv.FormatUint(gameId, 10)
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	_, isCommand := commands[message.Type]
	switch {
	case message.Type == "watch-game":
		s.handleWatch(socketId, message)
	case isCommand:
		s.relay(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.SendError(socketId, "unknown message type "+message.Type)
	}
}

func (s *Ws) handleWatch(socketId string, msg *comm.WSMessage) {
	var payload comm.WatchGame
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid watch-game payload %s", err)
		s.SendError(socketId, "invalid watch-game payload")
		return
	}

	room := RoomID(payload.GameId)
	s.StoreRoom(socketId, room)

	data, _ := json.Marshal(payload)
	s.Send(socketId, &comm.WSMessage{Type: "watch-game-response", Data: data, SocketId: socketId})
	log.Debugf("socket %s watching %s", socketId, room)
}

// relay stamps the verified caller and socket onto the message and hands it
// to the game service. Whatever caller the client sent is overwritten.
func (s *Ws) relay(socketId string, msg *comm.WSMessage) {
	c, ok := s.client(socketId)
	if !ok {
		return
	}
	msg.SocketId = socketId
	msg.Caller = c.caller

	// a command on a game also subscribes the socket to that game
	var ref comm.GameRequest
	if commands[msg.Type] && json.Unmarshal(msg.Data, &ref) == nil {
		s.StoreRoom(socketId, RoomID(ref.GameId))
	}

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	topic := comm.SubjectSocketService
	if err := s.Broker.Publish(topic, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", topic, err)
		s.SendError(socketId, "game service unavailable")
		return
	}
}

func (s *Ws) StoreConnection(socketId, caller string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn, caller: caller})
}

func (s *Ws) client(socketId string) (*client, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*client), true
}

// Send writes m to the socket if it is still connected.
func (s *Ws) Send(socketId string, m *comm.WSMessage) error {
	c, ok := s.client(socketId)
	if !ok {
		return errors.Errorf("socket %s not connected", socketId)
	}
	return c.writeJSON(m)
}

func (s *Ws) SendError(socketId, errorMsg string) {
	data, _ := json.Marshal(comm.Result{Status: false, Code: "bad_request", Error: errorMsg})
	if err := s.Send(socketId, &comm.WSMessage{Type: "error", Data: data, SocketId: socketId}); err != nil {
		log.Errorf("Failed to send error message to client: %v", err)
	}
}

func (s *Ws) StoreRoom(socketId string, roomId string) {
	s.roomMap.Store(socketId, roomId)
}

func (s *Ws) GetRoom(socketId string) (string, bool) {
	room, ok := s.roomMap.Load(socketId)
	if !ok {
		return "", false
	}
	return room.(string), true
}

func (s *Ws) GetRoomSockets(roomId string) ([]string, bool) {
	var sockets []string
	found := false

	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(string) == roomId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}

// GetCallerSockets returns every socket authenticated as caller.
func (s *Ws) GetCallerSockets(caller string) []string {
	var sockets []string
	s.connMap.Range(func(key, value interface{}) bool {
		if value.(*client).caller == caller {
			sockets = append(sockets, key.(string))
		}
		return true
	})
	return sockets
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.roomMap.Delete(socketId)
}
