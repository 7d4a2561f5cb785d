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

package trafficgen

import (
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

// VideoTraffic simulates a GOP structured video source
type VideoTraffic struct {
	GopSize    uint32
	PacketSize int // opaque payload bytes per packet
	Policy     models.PacketCountPolicy

	frameNum uint32
}

// NewVideoTraffic creates a new VideoTraffic generator
func NewVideoTraffic(gopSize uint32, pktSize int, policy models.PacketCountPolicy) (*VideoTraffic, error) {
	if err := ValidateGopSize(gopSize); err != nil {
		return nil, err
	}
	return &VideoTraffic{
		GopSize:    gopSize,
		PacketSize: pktSize,
		Policy:     policy,
	}, nil
}

// NextFrame emits the descriptor of the next frame, started at now
func (v *VideoTraffic) NextFrame(now float64) *models.FrameDescriptor {
	f := Describe(v.frameNum, v.GopSize, v.Policy, now)
	v.frameNum++
	return f
}

// Generated returns the number of frames emitted so far
func (v *VideoTraffic) Generated() uint32 {
	return v.frameNum
}
