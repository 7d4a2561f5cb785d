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

type AccessCategory string

const (
	AcBestEffort AccessCategory = "AC_BE"
	AcBackground AccessCategory = "AC_BK"
	AcVideo      AccessCategory = "AC_VI"
	AcVoice      AccessCategory = "AC_VO"
)

// user priorities attached to outgoing packets
const (
	PriorityBestEffort uint8 = 0
	PriorityVideo      uint8 = 5
	PriorityVoice      uint8 = 6
)

// AccessCategoryForTid maps an 802.11 user priority (TID) to its access category.
func AccessCategoryForTid(tid uint8) AccessCategory {
	switch tid & 0x07 {
	case 1, 2:
		return AcBackground
	case 4, 5:
		return AcVideo
	case 6, 7:
		return AcVoice
	}
	return AcBestEffort
}

type QosKey struct {
	FrameId     uint32 `json:"frameId"`
	PacketIndex uint32 `json:"packetIndex"`
}

// QosInfo is the lower layer classification observed for one delivered packet.
type QosInfo struct {
	Tid                  uint8          `json:"tid"`
	AccessCategory       AccessCategory `json:"accessCategory"`
	IsAggregated         bool           `json:"isAggregated"`
	AggregationRefNumber uint32         `json:"aggregationRefNumber"`
}
