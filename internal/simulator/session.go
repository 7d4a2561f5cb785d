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

package simulator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/components/channel"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/components/receiver"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/components/sender"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/report"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/trafficgen"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/vclock"
)

// virtual time processed between two cancellation checks
const runSlice = 0.1

var ErrInstanceFinished = errors.New("simulation instance already ran")

/* Simulation Instance Code */

// SimulationInstance is one end to end run: a video source streaming over a
// simulated link to a tracking receiver.
type SimulationInstance struct {
	simId     string
	tag       string
	config    *SimulationProfile
	outputDir string

	clock    *vclock.EventClock
	Link     *channel.Link
	Sender   *sender.Sender
	Tracker  *receiver.Tracker // set when the run starts
	analyzer *receiver.Analyzer
	finished bool
}

func NewSimulationInstance(config *SimulationProfile, outputDir string) (*SimulationInstance, error) {
	simId := uuid.NewString()
	clock := vclock.NewEventClock()

	source, err := trafficgen.NewVideoTraffic(config.GopSize, config.PacketSize, config.PacketCounts)
	if err != nil {
		return nil, err
	}

	n := &SimulationInstance{
		simId:     simId,
		tag:       config.Tag(simId),
		config:    config,
		outputDir: outputDir,
		clock:     clock,
		analyzer:  receiver.NewAnalyzer(config.DeadlineMs),
	}
	n.Link = channel.NewLink("link-"+simId[:8], simId, config.Channel, clock)
	n.Sender = sender.NewSender(simId, sender.Config{
		FrameInterval:   config.FrameIntervalMs / 1000,
		PacketGap:       config.PacketGapUs / 1e6,
		PayloadSize:     config.PacketSize,
		WarmupPackets:   config.WarmupPackets,
		WarmupDelay:     config.WarmupDelayMs / 1000,
		PriorityMarking: config.PriorityMarking,
	}, clock, n.Link, source)
	return n, nil
}

func (n *SimulationInstance) SimId() string {
	return n.simId
}

func (n *SimulationInstance) Tag() string {
	return n.tag
}

func (n *SimulationInstance) openPacketLog() *report.PacketLog {
	if !n.config.PacketLog || n.outputDir == "" {
		return nil
	}
	path := report.FilePath(n.outputDir, "packets", n.tag)
	l, err := report.CreatePacketLog(path)
	if err != nil {
		log.Printf("[%s] running without packet log: %v", n.simId, err)
		return nil
	}
	return l
}

// Run drives the simulation to its end or until ctx is cancelled, then analyzes
// what the receiver observed.
func (n *SimulationInstance) Run(ctx context.Context) (*models.RunReportMsg, error) {
	if n.finished {
		return nil, ErrInstanceFinished
	}
	n.finished = true
	cfg := n.config
	log.Printf("starting simulation %s", n.simId)
	n.Tracker = receiver.NewTracker(n.simId, n.clock, n.openPacketLog())

	n.clock.ScheduleAt(cfg.ReceiverStartS, func() { n.Tracker.Start(n.Link) })
	n.clock.ScheduleAt(cfg.SenderStartS, func() {
		if err := n.Sender.Start(); err != nil {
			log.Printf("[%s] could not start sender: %v", n.simId, err)
		}
	})
	n.clock.ScheduleAt(cfg.StopS, n.Sender.Stop)
	n.clock.ScheduleAt(cfg.ReceiverStopS, n.Tracker.Stop)

	end := cfg.ReceiverStopS
	if cfg.StopS > end {
		end = cfg.StopS
	}
	for limit := runSlice; ; limit += runSlice {
		if limit > end {
			limit = end
		}
		n.clock.Run(limit)
		if ctx.Err() != nil {
			log.Printf("simulation %s interrupted at %.3fs", n.simId, n.clock.Now())
			break
		}
		if limit >= end {
			break
		}
	}

	// a no-op when the timeline already ran to completion
	n.Sender.Stop()
	n.Tracker.Stop()
	n.Link.Close()
	n.Link.LogStats()

	return n.buildReport(), nil
}

func (n *SimulationInstance) buildReport() *models.RunReportMsg {
	frames := n.analyzer.Analyze(n.Tracker)
	summary := receiver.Summarize(frames)

	stats := n.Sender.Stats()
	summary.PacketsSent = stats.PacketsSent
	summary.SendFailures = stats.SendFailures
	summary.PacketsReceived = n.Tracker.Received()
	summary.WarmupDiscarded = n.Tracker.WarmupDiscarded()
	summary.Unattributable = n.Tracker.Unattributable()

	monitoring.EffectiveRatio.WithLabelValues(n.simId, "all").Set(summary.MeanEffective)
	monitoring.DeadlineHitRate.WithLabelValues(n.simId).Set(summary.DeadlineHitRate)
	for _, ft := range []models.FrameType{models.IFrame, models.PFrame, models.BFrame} {
		var sum float64
		var count int
		for _, f := range frames {
			if f.Type == ft {
				sum += f.EffectiveRatio
				count++
			}
		}
		if count > 0 {
			monitoring.EffectiveRatio.WithLabelValues(n.simId, ft.String()).Set(sum / float64(count))
		}
	}

	log.Printf("[%s] simulation summary: frames=%d (I=%d P=%d B=%d) complete=%d decodable=%d meanRatio=%.1f%% meanEffective=%.1f%% deadlineHit=%.1f%%",
		n.simId, summary.Frames, summary.IFrames, summary.PFrames, summary.BFrames, summary.CompleteFrames, summary.DecodableFrames,
		summary.MeanReception, summary.MeanEffective, summary.DeadlineHitRate*100)
	log.Printf("[%s] total tx: %d, total rx: %d", n.simId, summary.PacketsSent, summary.PacketsReceived)

	return &models.RunReportMsg{
		SimId:     n.simId,
		Tag:       n.tag,
		TimeStamp: time.Now(),
		Frames:    frames,
		Qos:       n.Tracker.QosRecords(),
		Summary:   summary,
	}
}
