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

package models

import (
	"fmt"
)

type RefStatus string

const (
	RefNone     RefStatus = "N/A"
	RefOk       RefStatus = "OK"
	RefFwdLost  RefStatus = "FWD_LOST"
	RefBwdLost  RefStatus = "BWD_LOST"
	RefBothLost RefStatus = "BOTH_LOST"
)

// FrameStatistics is the receiver side record of one observed frame.
// Counters are updated on delivery, the derived fields by the analyzer.
type FrameStatistics struct {
	FrameId         uint32    `json:"frameId"`
	Type            FrameType `json:"type"`
	ReceivedPackets uint32    `json:"receivedPackets"`
	TotalPackets    uint32    `json:"totalPackets"`
	ForwardRef      int32     `json:"forwardRef"`
	BackwardRef     int32     `json:"backwardRef"`
	ForwardRefLost  bool      `json:"forwardRefLost"`
	BackwardRefLost bool      `json:"backwardRefLost"`

	ReceptionRatio float64 `json:"receptionRatio"`
	EffectiveRatio float64 `json:"effectiveRatio"`

	TxStartTime      float64 `json:"txStartTime"`
	FirstArrivalTime float64 `json:"firstArrivalTime"`
	LastArrivalTime  float64 `json:"lastArrivalTime"`
	LatencyMs        float64 `json:"latencyMs"`
	WithinDeadline   bool    `json:"withinDeadline"`
}

// NewFrameStatistics seeds a record from the first packet seen for a frame.
func NewFrameStatistics(pkt *PacketDescriptor, now float64) *FrameStatistics {
	return &FrameStatistics{
		FrameId:          pkt.FrameId,
		Type:             pkt.Type,
		ReceivedPackets:  1,
		TotalPackets:     pkt.PacketCount,
		ForwardRef:       pkt.ForwardRef,
		BackwardRef:      pkt.BackwardRef,
		TxStartTime:      pkt.TxStartTime,
		FirstArrivalTime: now,
		LastArrivalTime:  now,
	}
}

// NewPacket accounts one more packet of the frame arriving at now.
func (stats *FrameStatistics) NewPacket(now float64) {
	stats.ReceivedPackets++
	stats.LastArrivalTime = now
}

func (stats *FrameStatistics) Complete() bool {
	return stats.ReceivedPackets >= stats.TotalPackets
}

func (stats *FrameStatistics) RefStatus() RefStatus {
	switch {
	case stats.ForwardRef == NoRef && stats.BackwardRef == NoRef:
		return RefNone
	case stats.ForwardRefLost && stats.BackwardRefLost:
		return RefBothLost
	case stats.ForwardRefLost:
		return RefFwdLost
	case stats.BackwardRefLost:
		return RefBwdLost
	}
	return RefOk
}

func (stats *FrameStatistics) Dumps() string {
	return fmt.Sprintf("Frame:     %d (%s),\nPackets:   %d/%d,\nRatio:     %.1f %%,\nEffective: %.1f %%,\nLatency:   %.2f ms,\nRefs:      %s,\n",
		stats.FrameId, stats.Type, stats.ReceivedPackets, stats.TotalPackets, stats.ReceptionRatio, stats.EffectiveRatio, stats.LatencyMs, stats.RefStatus())
}
