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
	"time"

	"github.com/giuliocarot0/gitc"
)

const (
	SimulatorToExporterType gitc.MessageType = iota
	ExporterToSimulatorType
)

// QosRecord is one row of the QoS side table, joined with the frame type when known.
type QosRecord struct {
	QosKey
	QosInfo
	Type      FrameType `json:"frameType"`
	TypeKnown bool      `json:"typeKnown"`
	RxTime    float64   `json:"rxTime"`
}

// RunSummary aggregates the analyzed frames of one run.
type RunSummary struct {
	Frames          int     `json:"frames"`
	IFrames         int     `json:"iFrames"`
	PFrames         int     `json:"pFrames"`
	BFrames         int     `json:"bFrames"`
	CompleteFrames  int     `json:"completeFrames"`
	DecodableFrames int     `json:"decodableFrames"`
	MeanReception   float64 `json:"meanReceptionRatio"`
	MeanEffective   float64 `json:"meanEffectiveRatio"`
	DeadlineHitRate float64 `json:"deadlineHitRate"`
	PacketsSent     uint64  `json:"packetsSent"`
	PacketsReceived uint64  `json:"packetsReceived"`
	WarmupDiscarded uint64  `json:"warmupDiscarded"`
	Unattributable  uint64  `json:"unattributable"`
	SendFailures    uint64  `json:"sendFailures"`
}

type RunReportMsg struct {
	SimId     string
	Tag       string
	TimeStamp time.Time
	Frames    []FrameStatistics
	Qos       []QosRecord
	Summary   RunSummary
}

// RunNotification is posted to subscribers once a run has been exported.
type RunNotification struct {
	NotifId     string     `json:"notifId"`
	SimId       string     `json:"simulationId"`
	TimeStamp   time.Time  `json:"timeStamp"`
	SummaryFile string     `json:"summaryFile,omitempty"`
	QosFile     string     `json:"qosFile,omitempty"`
	Summary     RunSummary `json:"summary"`
}
