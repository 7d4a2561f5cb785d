// Copyright 2025 EURECOM
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Contributors:
//   Giulio CAROTA
//   Thomas DU
//   Adlen KSENTINI

package channel

import (
	"errors"
	"log"

	"github.com/iti/rngstream"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/vclock"
)

var (
	ErrLinkDown  = errors.New("link is down")
	ErrQueueFull = errors.New("link queue is full")
)

// DeliveryFunc is invoked at arrival time for every packet surviving the link.
type DeliveryFunc func(data []byte, qos *models.QosInfo)

type LinkConfig struct {
	RateMbps    float64 `yaml:"rateMbps" json:"rateMbps"`
	DelayMs     float64 `yaml:"delayMs" json:"delayMs"`
	JitterMs    float64 `yaml:"jitterMs" json:"jitterMs"`
	MaxQueueMs  float64 `yaml:"maxQueueMs" json:"maxQueueMs"`
	MaxInFlight int     `yaml:"maxInFlight" json:"maxInFlight"`

	// Gilbert-Elliott loss model
	GoodToBad  float64 `yaml:"goodToBad" json:"goodToBad"`
	BadToGood  float64 `yaml:"badToGood" json:"badToGood"`
	LossInGood float64 `yaml:"lossInGood" json:"lossInGood"`
	LossInBad  float64 `yaml:"lossInBad" json:"lossInBad"`

	PriorityQueues        bool    `yaml:"priorityQueues" json:"priorityQueues"`
	Aggregation           bool    `yaml:"aggregation" json:"aggregation"`
	AggregationWindowMs   float64 `yaml:"aggregationWindowMs" json:"aggregationWindowMs"`
	AggregationMaxPackets int     `yaml:"aggregationMaxPackets" json:"aggregationMaxPackets"`
}

func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		RateMbps:              50,
		DelayMs:               2,
		JitterMs:              0.5,
		MaxQueueMs:            100,
		BadToGood:             1,
		AggregationWindowMs:   0.5,
		AggregationMaxPackets: 64,
	}
}

type LinkStats struct {
	Sent       uint64 `json:"sent"`
	Delivered  uint64 `json:"delivered"`
	QueueDrops uint64 `json:"queueDrops"`
	Lost       uint64 `json:"lost"`
}

// Link is a point to point simulated channel between the video source and sink.
// It is driven by the simulation clock and is not safe for concurrent use.
type Link struct {
	name  string
	simId string
	cfg   LinkConfig
	clock vclock.Clock
	rng   *rngstream.RngStream

	state       models.ChannelState
	transitions map[models.ChannelState][]models.Transition
	busyUntil   map[bool]float64 // keyed by high priority class
	inFlight    int
	closed      bool

	observer *Observer
	deliver  DeliveryFunc
	stats    LinkStats
}

func NewLink(name string, simId string, cfg LinkConfig, clock vclock.Clock) *Link {
	return &Link{
		name:        name,
		simId:       simId,
		cfg:         cfg,
		clock:       clock,
		rng:         rngstream.New(name),
		state:       models.ChannelGood,
		transitions: newTransitions(cfg),
		busyUntil:   make(map[bool]float64),
		observer:    NewObserver(cfg.Aggregation, cfg.AggregationWindowMs, cfg.AggregationMaxPackets),
	}
}

// Attach registers the receiving endpoint. Only one endpoint is served.
func (l *Link) Attach(fn DeliveryFunc) {
	l.deliver = fn
}

func (l *Link) Detach() {
	l.deliver = nil
}

// Close brings the link down for new packets. Packets already in flight are still delivered.
func (l *Link) Close() {
	l.closed = true
}

func (l *Link) Stats() LinkStats {
	return l.stats
}

func (l *Link) State() models.ChannelState {
	return l.state
}

// Send enqueues data for transmission with the given 802.11 user priority.
// Drops caused by the channel are silent, as on a real network.
func (l *Link) Send(data []byte, priority uint8) error {
	if l.closed {
		return ErrLinkDown
	}
	if l.cfg.MaxInFlight > 0 && l.inFlight >= l.cfg.MaxInFlight {
		return ErrQueueFull
	}
	l.stats.Sent++

	now := l.clock.Now()
	high := l.cfg.PriorityQueues && priority >= models.PriorityVideo
	start := now
	if l.busyUntil[high] > start {
		start = l.busyUntil[high]
	}
	if l.cfg.MaxQueueMs > 0 && (start-now)*1000 > l.cfg.MaxQueueMs {
		l.stats.QueueDrops++
		monitoring.ChannelDrops.WithLabelValues(l.simId, "queue").Inc()
		return nil
	}
	txEnd := start + l.serialization(len(data))
	l.busyUntil[high] = txEnd

	l.state = nextState(l.rng, l.transitions, l.state)
	if p := lossProbability(l.cfg, l.state); p > 0 && l.rng.RandU01() < p {
		l.stats.Lost++
		monitoring.ChannelDrops.WithLabelValues(l.simId, "loss").Inc()
		return nil
	}

	qos := l.observer.Observe(priority, txEnd)
	arrival := txEnd + l.cfg.DelayMs/1000
	if l.cfg.JitterMs > 0 {
		arrival += l.rng.RandU01() * l.cfg.JitterMs / 1000
	}

	l.inFlight++
	l.clock.ScheduleAt(arrival, func() {
		l.inFlight--
		if l.deliver == nil {
			return
		}
		l.stats.Delivered++
		l.deliver(data, qos)
	})
	return nil
}

func (l *Link) serialization(size int) float64 {
	if l.cfg.RateMbps <= 0 {
		return 0
	}
	return float64(size*8) / (l.cfg.RateMbps * 1e6)
}

func (l *Link) LogStats() {
	log.Printf("[%s] sent=%d delivered=%d queueDrops=%d lost=%d", l.name, l.stats.Sent, l.stats.Delivered, l.stats.QueueDrops, l.stats.Lost)
}
