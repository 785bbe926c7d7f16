package broker

import (
	"encoding/json"

	"github.com/avvvet/rps-services/internal/comm"
	"github.com/avvvet/rps-services/internal/rps"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventPublisher forwards committed engine events to the events subject.
type EventPublisher struct {
	Conn Publisher
}

func NewEventPublisher(conn Publisher) *EventPublisher {
	return &EventPublisher{Conn: conn}
}

func (p *EventPublisher) Notify(e rps.Event) {
	ev := comm.GameEvent{
		ID:      uuid.NewString(),
		Type:    string(e.Type),
		GameId:  e.GameID,
		Account: string(e.Account),
		Amount:  e.Amount,
		State:   e.State.String(),
		Outcome: e.Outcome.String(),
		Winner:  string(e.Winner),
		At:      e.At,
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("unable to marshal event %s game %d: %s", ev.Type, ev.GameId, err)
		return
	}

	// the transition is already committed, a lost event is only logged
	if err := p.Conn.Publish(comm.SubjectEvents, payload); err != nil {
		log.Errorf("Error publishing event %s game %d: %s", ev.Type, ev.GameId, err)
	}
}
