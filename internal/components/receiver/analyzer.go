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
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

const DefaultDeadlineMs = 33.3

// Analyzer derives the per-frame quality figures from a tracker's table.
type Analyzer struct {
	DeadlineMs float64
}

func NewAnalyzer(deadlineMs float64) *Analyzer {
	if deadlineMs <= 0 {
		deadlineMs = DefaultDeadlineMs
	}
	return &Analyzer{DeadlineMs: deadlineMs}
}

// Analyze returns the analyzed rows sorted by frame id. The tracker is not
// modified, so repeated calls without new deliveries give identical rows.
//
// A reference counts as lost only when the referenced frame was observed and
// is incomplete. A reference to a frame of which no packet arrived is not
// flagged.
func (a *Analyzer) Analyze(t *Tracker) []models.FrameStatistics {
	rows := t.Frames()

	index := make(map[uint32]int, len(rows))
	for i := range rows {
		s := &rows[i]
		s.ReceptionRatio = float64(s.ReceivedPackets) / float64(s.TotalPackets) * 100
		s.LatencyMs = (s.LastArrivalTime - s.TxStartTime) * 1000
		s.WithinDeadline = s.LatencyMs <= a.DeadlineMs
		index[s.FrameId] = i
	}

	for i := range rows {
		s := &rows[i]
		s.ForwardRefLost = refLost(rows, index, s.ForwardRef)
		s.BackwardRefLost = refLost(rows, index, s.BackwardRef)
		if s.ForwardRefLost || s.BackwardRefLost {
			s.EffectiveRatio = 0
		} else {
			s.EffectiveRatio = s.ReceptionRatio
		}
	}
	return rows
}

func refLost(rows []models.FrameStatistics, index map[uint32]int, ref int32) bool {
	if ref < 0 {
		return false
	}
	i, ok := index[uint32(ref)]
	if !ok {
		return false
	}
	return !rows[i].Complete()
}

// Summarize aggregates analyzed rows. Transport counters are left to the caller.
func Summarize(rows []models.FrameStatistics) models.RunSummary {
	summary := models.RunSummary{Frames: len(rows)}
	if len(rows) == 0 {
		return summary
	}
	var reception, effective float64
	var inTime int
	for _, s := range rows {
		switch s.Type {
		case models.IFrame:
			summary.IFrames++
		case models.PFrame:
			summary.PFrames++
		case models.BFrame:
			summary.BFrames++
		}
		if s.Complete() {
			summary.CompleteFrames++
			if !s.ForwardRefLost && !s.BackwardRefLost {
				summary.DecodableFrames++
			}
		}
		if s.WithinDeadline {
			inTime++
		}
		reception += s.ReceptionRatio
		effective += s.EffectiveRatio
	}
	n := float64(len(rows))
	summary.MeanReception = reception / n
	summary.MeanEffective = effective / n
	summary.DeadlineHitRate = float64(inTime) / n
	return summary
}
