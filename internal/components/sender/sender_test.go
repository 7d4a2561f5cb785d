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
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/trafficgen"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/vclock"
)

// manualClock is a deterministic vclock.Clock advanced explicitly by the test.
type manualClock struct {
	now    float64
	nextId vclock.EventHandle
	events map[vclock.EventHandle]*scheduledEvent
}

type scheduledEvent struct {
	at float64
	fn func()
}

func newManualClock() *manualClock {
	return &manualClock{events: make(map[vclock.EventHandle]*scheduledEvent)}
}

func (c *manualClock) Now() float64 { return c.now }

func (c *manualClock) ScheduleAt(at float64, fn func()) vclock.EventHandle {
	if at < c.now {
		at = c.now
	}
	c.nextId++
	c.events[c.nextId] = &scheduledEvent{at: at, fn: fn}
	return c.nextId
}

func (c *manualClock) Schedule(delay float64, fn func()) vclock.EventHandle {
	return c.ScheduleAt(c.now+delay, fn)
}

func (c *manualClock) Cancel(h vclock.EventHandle) bool {
	_, ok := c.events[h]
	delete(c.events, h)
	return ok
}

// AdvanceTo runs every event due up to t, earliest first, ties in scheduling order.
func (c *manualClock) AdvanceTo(t float64) {
	for {
		var next vclock.EventHandle
		for h, ev := range c.events {
			if ev.at > t {
				continue
			}
			if next == 0 || ev.at < c.events[next].at || (ev.at == c.events[next].at && h < next) {
				next = h
			}
		}
		if next == 0 {
			break
		}
		ev := c.events[next]
		delete(c.events, next)
		c.now = ev.at
		ev.fn()
	}
	c.now = t
}

type sentPacket struct {
	at       float64
	pkt      *models.PacketDescriptor
	priority uint8
}

type recordingTransport struct {
	clock *manualClock
	sent  []sentPacket
	fail  func(*models.PacketDescriptor) bool
}

func (r *recordingTransport) Send(data []byte, priority uint8) error {
	pkt, err := models.UnmarshalPacket(data)
	if err != nil {
		return err
	}
	if r.fail != nil && r.fail(pkt) {
		return errors.New("transport refused packet")
	}
	r.sent = append(r.sent, sentPacket{at: r.clock.Now(), pkt: pkt, priority: priority})
	return nil
}

func (r *recordingTransport) frame(id uint32) []sentPacket {
	var out []sentPacket
	for _, s := range r.sent {
		if s.pkt.FrameId == id {
			out = append(out, s)
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		FrameInterval:   0.04,
		PacketGap:       0.001,
		PayloadSize:     10,
		WarmupPackets:   3,
		WarmupDelay:     0.5,
		PriorityMarking: true,
	}
}

func newTestSender(t *testing.T, cfg Config) (*Sender, *manualClock, *recordingTransport) {
	t.Helper()
	clock := newManualClock()
	transport := &recordingTransport{clock: clock}
	source, err := trafficgen.NewVideoTraffic(12, cfg.PayloadSize, models.DefaultPacketCountPolicy())
	require.NoError(t, err)
	return NewSender("test", cfg, clock, transport, source), clock, transport
}

func TestSenderWarmupAndFirstFrame(t *testing.T) {
	s, clock, transport := newTestSender(t, testConfig())
	require.Equal(t, SenderIdle, s.Status())
	require.NoError(t, s.Start())
	require.Equal(t, SenderGenerating, s.Status())

	warmup := transport.frame(models.WarmupFrameId)
	require.Len(t, warmup, 3)
	for _, w := range warmup {
		require.True(t, w.pkt.IsWarmup())
		require.Equal(t, models.PriorityVoice, w.priority)
		require.Zero(t, w.at)
	}

	clock.AdvanceTo(0.499)
	require.Len(t, transport.sent, 3)

	clock.AdvanceTo(0.5495)
	first := transport.frame(0)
	require.Len(t, first, 50)
	for i, p := range first {
		require.Equal(t, uint32(i), p.pkt.PacketIndex)
		require.Equal(t, uint32(50), p.pkt.PacketCount)
		require.Equal(t, models.IFrame, p.pkt.Type)
		require.Equal(t, models.PriorityVideo, p.priority)
		require.InDelta(t, 0.5+float64(i)*0.001, p.at, 1e-9)
		require.InDelta(t, 0.5, p.pkt.TxStartTime, 1e-9)
		require.Len(t, p.pkt.Payload, 10)
	}

	stats := s.Stats()
	require.Equal(t, uint64(3), stats.WarmupSent)
	require.Equal(t, uint64(2), stats.FramesGenerated) // frame 1 started at 0.54
	require.Zero(t, stats.SendFailures)
}

func TestSenderFrameCadence(t *testing.T) {
	s, clock, transport := newTestSender(t, testConfig())
	require.NoError(t, s.Start())

	clock.AdvanceTo(0.65)
	require.Equal(t, uint64(4), s.Stats().FramesGenerated)

	expected := []struct {
		typ      models.FrameType
		start    float64
		count    int
		priority uint8
		fwd, bwd int32
	}{
		{models.IFrame, 0.50, 50, models.PriorityVideo, models.NoRef, models.NoRef},
		{models.BFrame, 0.54, 5, models.PriorityBestEffort, 0, 3},
		{models.BFrame, 0.58, 5, models.PriorityBestEffort, 0, 3},
		{models.PFrame, 0.62, 30, models.PriorityBestEffort, 0, models.NoRef},
	}
	for id, exp := range expected {
		packets := transport.frame(uint32(id))
		require.Len(t, packets, exp.count, "frame %d", id)
		for _, p := range packets {
			require.Equal(t, exp.typ, p.pkt.Type)
			require.Equal(t, exp.priority, p.priority)
			require.Equal(t, exp.fwd, p.pkt.ForwardRef)
			require.Equal(t, exp.bwd, p.pkt.BackwardRef)
			require.InDelta(t, exp.start, p.pkt.TxStartTime, 1e-9)
		}
	}
}

func TestSenderWithoutPriorityMarking(t *testing.T) {
	cfg := testConfig()
	cfg.PriorityMarking = false
	s, clock, transport := newTestSender(t, cfg)
	require.NoError(t, s.Start())
	clock.AdvanceTo(1)

	for _, p := range transport.sent {
		if p.pkt.IsWarmup() {
			require.Equal(t, models.PriorityVoice, p.priority)
			continue
		}
		require.Equal(t, models.PriorityBestEffort, p.priority)
	}
}

func TestSenderStopCancelsPendingPackets(t *testing.T) {
	s, clock, transport := newTestSender(t, testConfig())
	require.NoError(t, s.Start())

	clock.AdvanceTo(0.5105)
	require.Len(t, transport.frame(0), 11)

	s.Stop()
	require.Equal(t, SenderStopped, s.Status())
	require.Empty(t, clock.events)

	clock.AdvanceTo(5)
	require.Len(t, transport.sent, 3+11)
	require.Equal(t, uint64(1), s.Stats().FramesGenerated)

	s.Stop()
	require.ErrorIs(t, s.Start(), ErrNotIdle)
}

func TestSenderSkipsFailedPackets(t *testing.T) {
	s, clock, transport := newTestSender(t, testConfig())
	transport.fail = func(p *models.PacketDescriptor) bool {
		return p.FrameId == 0 && p.PacketIndex == 2
	}
	require.NoError(t, s.Start())
	clock.AdvanceTo(0.65)

	first := transport.frame(0)
	require.Len(t, first, 49)
	for _, p := range first {
		require.NotEqual(t, uint32(2), p.pkt.PacketIndex)
	}
	require.Len(t, transport.frame(3), 30)

	stats := s.Stats()
	require.Equal(t, uint64(1), stats.SendFailures)
	require.Equal(t, uint64(49+5+5+30), stats.PacketsSent)
}
