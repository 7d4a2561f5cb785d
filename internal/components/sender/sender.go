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

package sender

import (
	"errors"
	"log"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/trafficgen"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/vclock"
)

// Transport carries serialized packets towards the receiver. priority is the
// 802.11 user priority the packet is marked with.
type Transport interface {
	Send(data []byte, priority uint8) error
}

type SenderStatus string

const (
	SenderIdle       SenderStatus = "IDLE"
	SenderGenerating SenderStatus = "GENERATING"
	SenderStopped    SenderStatus = "STOPPED"
)

var ErrNotIdle = errors.New("sender already started")

type Config struct {
	FrameInterval   float64 // seconds between two generation events
	PacketGap       float64 // seconds between two packets of the same frame
	PayloadSize     int
	WarmupPackets   uint32
	WarmupDelay     float64 // seconds between the warm-up burst and the first frame
	PriorityMarking bool
}

type Stats struct {
	FramesGenerated uint64 `json:"framesGenerated"`
	PacketsSent     uint64 `json:"packetsSent"`
	WarmupSent      uint64 `json:"warmupSent"`
	SendFailures    uint64 `json:"sendFailures"`
}

// A Sender turns the frames of a FrameGenerator into timed packet
// transmissions. All of its methods must be called from the clock goroutine.
type Sender struct {
	simId     string
	cfg       Config
	clock     vclock.Clock
	transport Transport
	source    trafficgen.FrameGenerator

	status  SenderStatus
	nextGen vclock.EventHandle
	pending map[vclock.EventHandle]struct{}
	stats   Stats
}

func NewSender(simId string, cfg Config, clock vclock.Clock, transport Transport, source trafficgen.FrameGenerator) *Sender {
	return &Sender{
		simId:     simId,
		cfg:       cfg,
		clock:     clock,
		transport: transport,
		source:    source,
		status:    SenderIdle,
		pending:   make(map[vclock.EventHandle]struct{}),
	}
}

// Start primes the path with the warm-up burst and arms the first frame
// generation WarmupDelay seconds later.
func (s *Sender) Start() error {
	if s.status != SenderIdle {
		return ErrNotIdle
	}
	s.status = SenderGenerating
	log.Printf("[%s] sender started, sending %d warm-up packets", s.simId, s.cfg.WarmupPackets)

	warmup := &models.FrameDescriptor{
		FrameId:     models.WarmupFrameId,
		Type:        models.IFrame,
		ForwardRef:  models.NoRef,
		BackwardRef: models.NoRef,
		TxStartTime: s.clock.Now(),
	}
	for i := uint32(0); i < s.cfg.WarmupPackets; i++ {
		if s.send(warmup.Packet(i, s.cfg.PayloadSize), models.PriorityVoice) {
			s.stats.WarmupSent++
		}
	}

	s.nextGen = s.clock.Schedule(s.cfg.WarmupDelay, s.generate)
	return nil
}

// Stop cancels the pending generation and every packet not yet handed to the
// transport. Calling it more than once is a no-op.
func (s *Sender) Stop() {
	if s.status == SenderStopped {
		return
	}
	s.status = SenderStopped
	s.clock.Cancel(s.nextGen)
	for h := range s.pending {
		s.clock.Cancel(h)
	}
	clear(s.pending)
	log.Printf("[%s] sender stopped after %d frames (%d packets sent, %d failures)", s.simId, s.stats.FramesGenerated, s.stats.PacketsSent, s.stats.SendFailures)
}

func (s *Sender) Status() SenderStatus {
	return s.status
}

func (s *Sender) Stats() Stats {
	return s.stats
}

func (s *Sender) generate() {
	if s.status != SenderGenerating {
		return
	}
	frame := s.source.NextFrame(s.clock.Now())
	s.stats.FramesGenerated++
	monitoring.FramesGenerated.WithLabelValues(s.simId, frame.Type.String()).Inc()
	log.Printf("[%s] generating %s frame %d (%d packets, fwdRef=%d, bwdRef=%d)", s.simId, frame.Type, frame.FrameId, frame.PacketCount, frame.ForwardRef, frame.BackwardRef)

	priority := s.priorityFor(frame.Type)
	for i := uint32(0); i < frame.PacketCount; i++ {
		pkt := frame.Packet(i, s.cfg.PayloadSize)
		var h vclock.EventHandle
		h = s.clock.Schedule(float64(i)*s.cfg.PacketGap, func() {
			delete(s.pending, h)
			if s.send(pkt, priority) {
				s.stats.PacketsSent++
			}
		})
		s.pending[h] = struct{}{}
	}

	s.nextGen = s.clock.Schedule(s.cfg.FrameInterval, s.generate)
}

// priorityFor applies the marking policy: one class per frame.
func (s *Sender) priorityFor(t models.FrameType) uint8 {
	if s.cfg.PriorityMarking && t == models.IFrame {
		return models.PriorityVideo
	}
	return models.PriorityBestEffort
}

func (s *Sender) send(pkt *models.PacketDescriptor, priority uint8) bool {
	data, err := pkt.MarshalBinary()
	if err == nil {
		err = s.transport.Send(data, priority)
	}
	if err != nil {
		s.stats.SendFailures++
		monitoring.PacketSendFailures.WithLabelValues(s.simId).Inc()
		log.Printf("[%s] failed to send packet %d of frame %d: %v", s.simId, pkt.PacketIndex, pkt.FrameId, err)
		return false
	}
	monitoring.PacketsSent.WithLabelValues(s.simId, string(models.AccessCategoryForTid(priority))).Inc()
	return true
}
