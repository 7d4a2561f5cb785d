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

package receiver

import (
	"log"
	"sort"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/components/channel"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/report"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/vclock"
)

// DeliverySource is the inbound side of the transport.
type DeliverySource interface {
	Attach(fn channel.DeliveryFunc)
	Detach()
}

// Tracker accumulates per-frame reception statistics from delivered packets.
// It is driven by the simulation clock and tolerates any delivery order.
type Tracker struct {
	simId string
	clock vclock.Clock

	frames    map[uint32]*models.FrameStatistics
	qos       *QosTable
	packetLog *report.PacketLog
	source    DeliverySource
	stopped   bool

	received        uint64
	unattributable  uint64
	warmupDiscarded uint64
}

// NewTracker creates a tracker. packetLog may be nil.
func NewTracker(simId string, clock vclock.Clock, packetLog *report.PacketLog) *Tracker {
	return &Tracker{
		simId:     simId,
		clock:     clock,
		frames:    make(map[uint32]*models.FrameStatistics),
		qos:       NewQosTable(),
		packetLog: packetLog,
	}
}

// Start registers the tracker as the delivery callback of source.
func (t *Tracker) Start(source DeliverySource) {
	t.source = source
	source.Attach(t.OnDeliver)
	log.Printf("[%s] receiver started", t.simId)
}

// Stop detaches the tracker and closes the packet log. Statistics stay available.
func (t *Tracker) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	if t.source != nil {
		t.source.Detach()
	}
	if t.packetLog != nil {
		if err := t.packetLog.Close(); err != nil {
			log.Printf("[%s] could not close packet log: %v", t.simId, err)
		}
	}
	log.Printf("[%s] receiver stopped: %d frames observed, %d packets received", t.simId, len(t.frames), t.received)
}

// OnDeliver accounts one delivered packet. qos may be nil.
func (t *Tracker) OnDeliver(data []byte, qos *models.QosInfo) {
	if t.stopped {
		return
	}
	now := t.clock.Now()

	pkt, err := models.UnmarshalPacket(data)
	if err != nil {
		t.unattributable++
		monitoring.PacketsReceived.WithLabelValues(t.simId, "unattributable").Inc()
		log.Printf("[%s] dropping unattributable packet: %v", t.simId, err)
		return
	}
	if pkt.IsWarmup() {
		t.warmupDiscarded++
		monitoring.PacketsReceived.WithLabelValues(t.simId, "warmup").Inc()
		return
	}

	t.received++
	monitoring.PacketsReceived.WithLabelValues(t.simId, "attributed").Inc()
	stats, ok := t.frames[pkt.FrameId]
	if !ok {
		stats = models.NewFrameStatistics(pkt, now)
		t.frames[pkt.FrameId] = stats
	} else {
		stats.NewPacket(now)
	}

	if qos != nil {
		t.qos.Put(models.QosKey{FrameId: pkt.FrameId, PacketIndex: pkt.PacketIndex}, *qos, now)
	}

	if t.packetLog != nil && !t.packetLog.Disabled() {
		if err := t.packetLog.Write(pkt, now); err != nil {
			log.Printf("[%s] packet log disabled: %v", t.simId, err)
		}
	}
}

// Frames returns a copy of the statistics table sorted by frame id.
func (t *Tracker) Frames() []models.FrameStatistics {
	out := make([]models.FrameStatistics, 0, len(t.frames))
	for _, s := range t.frames {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FrameId < out[j].FrameId })
	return out
}

func (t *Tracker) Frame(id uint32) (models.FrameStatistics, bool) {
	s, ok := t.frames[id]
	if !ok {
		return models.FrameStatistics{}, false
	}
	return *s, true
}

func (t *Tracker) frameType(id uint32) (models.FrameType, bool) {
	s, ok := t.frames[id]
	if !ok {
		return 0, false
	}
	return s.Type, true
}

// QosRecords returns the QoS side table joined with the observed frame types.
func (t *Tracker) QosRecords() []models.QosRecord {
	return t.qos.Records(t.frameType)
}

func (t *Tracker) Received() uint64        { return t.received }
func (t *Tracker) Unattributable() uint64  { return t.unattributable }
func (t *Tracker) WarmupDiscarded() uint64 { return t.warmupDiscarded }
