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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

type FrameType uint8

const (
	IFrame FrameType = iota
	PFrame
	BFrame
)

// NoRef marks an absent forward or backward reference.
const NoRef int32 = -1

// WarmupFrameId is the reserved out-of-band id carried by path priming packets.
const WarmupFrameId uint32 = math.MaxUint32

// HeaderSize is the size of the metadata header carried in front of every
// payload: four uint32, two int32 and one float64.
const HeaderSize = 32

var (
	ErrMalformedPacket  = errors.New("malformed video packet")
	ErrUnknownFrameType = errors.New("unknown frame type")
)

func (t FrameType) String() string {
	switch t {
	case IFrame:
		return "I"
	case PFrame:
		return "P"
	case BFrame:
		return "B"
	}
	return fmt.Sprintf("FrameType(%d)", uint8(t))
}

func (t FrameType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *FrameType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "I":
		*t = IFrame
	case "P":
		*t = PFrame
	case "B":
		*t = BFrame
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrameType, text)
	}
	return nil
}

// ParseFrameType maps a wire code back to a FrameType.
func ParseFrameType(code uint32) (FrameType, error) {
	switch code {
	case uint32(IFrame):
		return IFrame, nil
	case uint32(PFrame):
		return PFrame, nil
	case uint32(BFrame):
		return BFrame, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownFrameType, code)
}

// PacketCountPolicy gives the number of packets a frame of each type is split into.
type PacketCountPolicy struct {
	I uint32 `yaml:"i" json:"i"`
	P uint32 `yaml:"p" json:"p"`
	B uint32 `yaml:"b" json:"b"`
}

func DefaultPacketCountPolicy() PacketCountPolicy {
	return PacketCountPolicy{I: 50, P: 30, B: 5}
}

func (p PacketCountPolicy) Count(t FrameType) uint32 {
	switch t {
	case IFrame:
		return p.I
	case PFrame:
		return p.P
	}
	return p.B
}

// FrameDescriptor is the immutable metadata of one generated frame.
type FrameDescriptor struct {
	FrameId     uint32
	Type        FrameType
	PacketCount uint32
	ForwardRef  int32
	BackwardRef int32
	TxStartTime float64 // virtual seconds
}

func (f *FrameDescriptor) HasForwardRef() bool  { return f.ForwardRef != NoRef }
func (f *FrameDescriptor) HasBackwardRef() bool { return f.BackwardRef != NoRef }

// Packet builds the descriptor of the packet at index idx carrying payloadSize opaque bytes.
func (f *FrameDescriptor) Packet(idx uint32, payloadSize int) *PacketDescriptor {
	return &PacketDescriptor{
		FrameId:     f.FrameId,
		Type:        f.Type,
		PacketIndex: idx,
		PacketCount: f.PacketCount,
		ForwardRef:  f.ForwardRef,
		BackwardRef: f.BackwardRef,
		TxStartTime: f.TxStartTime,
		Payload:     make([]byte, payloadSize),
	}
}

// PacketDescriptor is the on-wire unit. The first HeaderSize bytes are the
// frame metadata, big endian, the rest is opaque payload.
type PacketDescriptor struct {
	FrameId     uint32
	Type        FrameType
	PacketIndex uint32
	PacketCount uint32
	ForwardRef  int32
	BackwardRef int32
	TxStartTime float64
	Payload     []byte
}

func (p *PacketDescriptor) IsWarmup() bool {
	return p.FrameId == WarmupFrameId
}

func (p *PacketDescriptor) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+len(p.Payload))
	binary.BigEndian.PutUint32(buf[0:4], p.FrameId)
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.Type))
	binary.BigEndian.PutUint32(buf[8:12], p.PacketIndex)
	binary.BigEndian.PutUint32(buf[12:16], p.PacketCount)
	binary.BigEndian.PutUint32(buf[16:20], uint32(p.ForwardRef))
	binary.BigEndian.PutUint32(buf[20:24], uint32(p.BackwardRef))
	binary.BigEndian.PutUint64(buf[24:32], math.Float64bits(p.TxStartTime))
	copy(buf[HeaderSize:], p.Payload)
	return buf, nil
}

// UnmarshalPacket decodes a buffer produced by MarshalBinary.
// The payload slice aliases data.
func UnmarshalPacket(data []byte) (*PacketDescriptor, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(data))
	}
	ft, err := ParseFrameType(binary.BigEndian.Uint32(data[4:8]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	p := &PacketDescriptor{
		FrameId:     binary.BigEndian.Uint32(data[0:4]),
		Type:        ft,
		PacketIndex: binary.BigEndian.Uint32(data[8:12]),
		PacketCount: binary.BigEndian.Uint32(data[12:16]),
		ForwardRef:  int32(binary.BigEndian.Uint32(data[16:20])),
		BackwardRef: int32(binary.BigEndian.Uint32(data[20:24])),
		TxStartTime: math.Float64frombits(binary.BigEndian.Uint64(data[24:32])),
		Payload:     data[HeaderSize:],
	}
	if p.FrameId != WarmupFrameId && (p.PacketCount == 0 || p.PacketIndex >= p.PacketCount) {
		return nil, fmt.Errorf("%w: packet %d of %d", ErrMalformedPacket, p.PacketIndex, p.PacketCount)
	}
	return p, nil
}
