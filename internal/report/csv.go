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

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

var (
	summaryHeader   = []string{"FrameID", "Type", "PacketRatio(%)", "FwdRef", "BwdRef", "RefStatus", "EffectiveRatio(%)", "Latency(ms)", "WithinDeadline", "FirstArrival(sec)", "LastArrival(sec)"}
	packetLogHeader = []string{"tx_time_s", "rx_time_s", "latency_ms", "frame_id", "frame_type", "packet_index", "total_packets", "forward_ref", "backward_ref"}
	qosHeader       = []string{"Time(sec)", "FrameID", "FrameType", "PacketIndex", "TID", "AccessCategory", "IsAggregated", "AggregationRef"}
)

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func itoa(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}

func utoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

// WriteSummary writes one row per analyzed frame, sorted by frame id.
func WriteSummary(w io.Writer, rows []models.FrameStatistics) error {
	sorted := make([]models.FrameStatistics, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FrameId < sorted[j].FrameId })

	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range sorted {
		record := []string{
			utoa(s.FrameId),
			s.Type.String(),
			ftoa(s.ReceptionRatio, 1),
			itoa(s.ForwardRef),
			itoa(s.BackwardRef),
			string(s.RefStatus()),
			ftoa(s.EffectiveRatio, 1),
			ftoa(s.LatencyMs, 2),
			yesNo(s.WithinDeadline),
			ftoa(s.FirstArrivalTime, 4),
			ftoa(s.LastArrivalTime, 4),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteQos writes the QoS side table in (frame id, packet index) order.
func WriteQos(w io.Writer, entries []models.QosRecord) error {
	sorted := make([]models.QosRecord, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FrameId != sorted[j].FrameId {
			return sorted[i].FrameId < sorted[j].FrameId
		}
		return sorted[i].PacketIndex < sorted[j].PacketIndex
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(qosHeader); err != nil {
		return err
	}
	for _, e := range sorted {
		frameType := "UNKNOWN"
		if e.TypeKnown {
			frameType = e.Type.String()
		}
		record := []string{
			ftoa(e.RxTime, 6),
			utoa(e.FrameId),
			frameType,
			utoa(e.PacketIndex),
			strconv.Itoa(int(e.Tid)),
			string(e.AccessCategory),
			yesNo(e.IsAggregated),
			utoa(e.AggregationRefNumber),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PacketLog is the chronological per-packet reception log. Rows are flushed as
// they are written. After the first write error the log disables itself.
type PacketLog struct {
	cw     *csv.Writer
	closer io.Closer
	failed bool
}

func NewPacketLog(w io.Writer) (*PacketLog, error) {
	l := &PacketLog{cw: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	if err := l.writeRecord(packetLogHeader); err != nil {
		return nil, err
	}
	return l, nil
}

// CreatePacketLog opens a new packet log file at path, truncating any previous one.
func CreatePacketLog(path string) (*PacketLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create packet log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create packet log: %w", err)
	}
	l, err := NewPacketLog(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Write appends the record of pkt received at rxTime.
func (l *PacketLog) Write(pkt *models.PacketDescriptor, rxTime float64) error {
	if l.failed {
		return nil
	}
	return l.writeRecord([]string{
		ftoa(pkt.TxStartTime, 6),
		ftoa(rxTime, 6),
		ftoa((rxTime-pkt.TxStartTime)*1000, 3),
		utoa(pkt.FrameId),
		pkt.Type.String(),
		utoa(pkt.PacketIndex),
		utoa(pkt.PacketCount),
		itoa(pkt.ForwardRef),
		itoa(pkt.BackwardRef),
	})
}

// Disabled reports whether a previous write failed.
func (l *PacketLog) Disabled() bool {
	return l.failed
}

func (l *PacketLog) Close() error {
	if !l.failed {
		l.cw.Flush()
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *PacketLog) writeRecord(record []string) error {
	if err := l.cw.Write(record); err != nil {
		l.failed = true
		return err
	}
	l.cw.Flush()
	if err := l.cw.Error(); err != nil {
		l.failed = true
		return err
	}
	return nil
}
