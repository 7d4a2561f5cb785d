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
	"errors"
	"fmt"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

// MinGopSize is the smallest GOP able to hold an I frame, a B frame and the closing P frame.
const MinGopSize = 3

var ErrInvalidGopSize = errors.New("invalid gop size")

func ValidateGopSize(gopSize uint32) error {
	if gopSize < MinGopSize {
		return fmt.Errorf("%w: %d, need at least %d", ErrInvalidGopSize, gopSize, MinGopSize)
	}
	return nil
}

// Classify returns the type of frame n in a periodic GOP of gopSize frames.
//
// GOP layout for gopSize=12:
//
//	pos:  0 1 2 3 4 5 6 7 8 9 10 11
//	type: I B B P B B P B B P B  P
//
// The last slot is always a P frame so each GOP closes on its own.
func Classify(frameNumber, gopSize uint32) models.FrameType {
	pos := frameNumber % gopSize
	switch {
	case pos == 0:
		return models.IFrame
	case pos == gopSize-1:
		return models.PFrame
	case pos%3 == 0:
		return models.PFrame
	}
	return models.BFrame
}

// References returns the forward and backward reference ids of frame n.
// The forward reference is the latest I/P frame before n in the same GOP,
// the backward one (B frames only) the next I/P frame, which for the tail of
// the GOP is the I frame opening the next GOP.
func References(frameNumber uint32, frameType models.FrameType, gopSize uint32) (int32, int32) {
	pos := frameNumber % gopSize
	base := frameNumber - pos

	switch frameType {
	case models.IFrame:
		return models.NoRef, models.NoRef
	case models.PFrame:
		return int32(base + previousKey(pos)), models.NoRef
	case models.BFrame:
		nextKey := (pos/3 + 1) * 3
		if nextKey >= gopSize {
			nextKey = gopSize
		}
		return int32(base + previousKey(pos)), int32(base + nextKey)
	}
	return models.NoRef, models.NoRef
}

func previousKey(pos uint32) uint32 {
	if pos < 3 {
		return 0
	}
	return ((pos - 1) / 3) * 3
}

// Describe builds the full descriptor of frame n generated at txStart.
func Describe(frameNumber, gopSize uint32, policy models.PacketCountPolicy, txStart float64) *models.FrameDescriptor {
	ft := Classify(frameNumber, gopSize)
	fwd, bwd := References(frameNumber, ft, gopSize)
	return &models.FrameDescriptor{
		FrameId:     frameNumber,
		Type:        ft,
		PacketCount: policy.Count(ft),
		ForwardRef:  fwd,
		BackwardRef: bwd,
		TxStartTime: txStart,
	}
}
