// Package events fans scenario events out to subscribers, in process or over
// Redis pub/sub.
package events

import (
    "strconv"
    "sync"
    "time"

    "github.com/google/uuid"
)

const (
    ScenarioSaved   = "scenario.saved"
    ScenarioDeleted = "scenario.deleted"
    SolveCompleted  = "solve.completed"
)

type Event struct {
    ID         string         `json:"id"`
    Type       string         `json:"type"`
    ScenarioID int64          `json:"scenario_id"`
    Data       map[string]any `json:"data,omitempty"`
    At         time.Time      `json:"at"`
}

// New stamps an event with an id and time.
func New(typ string, scenarioID int64, data map[string]any) Event {
    return Event{ID: uuid.NewString(), Type: typ, ScenarioID: scenarioID, Data: data, At: time.Now().UTC()}
}

// Topic is the subscription key for a scenario; 0 is the baseline.
func Topic(scenarioID int64) string { return "scenario:" + strconv.FormatInt(scenarioID, 10) }

// Publisher is what producers need.
type Publisher interface {
    Publish(topic string, evt Event)
}

// Bus is a Publisher that can also be subscribed to.
type Bus interface {
    Publisher
    Subscribe(topic string) chan Event
    Unsubscribe(topic string, ch chan Event)
}

// Broker is the in-process Bus. Slow subscribers drop events.
type Broker struct {
    mu      sync.Mutex
    subs    map[string]map[chan Event]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Event {
    ch := make(chan Event, 8)
    b.mu.Lock()
    if b.subs[topic] == nil { b.subs[topic] = map[chan Event]struct{}{} }
    b.subs[topic][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[topic]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, topic) }
    close(ch)
}

func (b *Broker) Publish(topic string, evt Event) {
    b.mu.Lock()
    m := b.subs[topic]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
