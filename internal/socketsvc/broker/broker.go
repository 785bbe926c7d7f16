package broker

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	Conn             *nats.Conn
	Send             func(socketId string, m *comm.WSMessage) error
	GetRoomSockets   func(roomId string) ([]string, bool)
	GetCallerSockets func(caller string) []string
}

func NewBroker(conn *nats.Conn, send func(string, *comm.WSMessage) error,
	getRoomSockets func(string) ([]string, bool), getCallerSockets func(string) []string) *Broker {
	return &Broker{
		Conn:             conn,
		Send:             send,
		GetRoomSockets:   getRoomSockets,
		GetCallerSockets: getCallerSockets,
	}
}

// consume command results from the game service
func (b *Broker) SubscribeResponses() (*nats.Subscription, error) {
	return b.Conn.Subscribe(comm.SubjectGameService, func(m *nats.Msg) { b.HandleResponse(m.Data) })
}

// consume committed game events
func (b *Broker) SubscribeEvents() (*nats.Subscription, error) {
	return b.Conn.Subscribe(comm.SubjectEvents, func(m *nats.Msg) { b.HandleEvent(m.Data) })
}

// publish message to game service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// HandleResponse delivers a "<type>-response" to the socket that asked.
func (b *Broker) HandleResponse(data []byte) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	if !strings.HasSuffix(message.Type, "-response") {
		log.Errorf("Unknown message %s", message.Type)
		return
	}
	b.sendMessage(message.SocketId, message)
}

// HandleEvent fans an event out to the sockets watching its game and to
// the sockets of the accounts it names. Each socket gets it once.
func (b *Broker) HandleEvent(data []byte) {
	ev := comm.GameEvent{}
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Errorf("Error decoding event %s", err)
		return
	}

	targets := make(map[string]bool)
	// withdrawals are not tied to a game
	if ev.Type != "balance-withdrawn" {
		sockets, _ := b.GetRoomSockets("game:" + strconv.FormatUint(ev.GameId, 10))
		for _, id := range sockets {
			targets[id] = true
		}
	}
	for _, account := range []string{ev.Account, ev.Winner} {
		if account == "" {
			continue
		}
		for _, id := range b.GetCallerSockets(account) {
			targets[id] = true
		}
	}

	for socketId := range targets {
		b.sendMessage(socketId, &comm.WSMessage{Type: "game-event", Data: data, SocketId: socketId})
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(socketId string, m *comm.WSMessage) {
	if err := b.Send(socketId, m); err != nil {
		log.Debugf("drop message %s for socket %s: %s", m.Type, socketId, err)
	}
}
