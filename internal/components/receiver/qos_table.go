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
	"sort"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

type qosEntry struct {
	info   models.QosInfo
	rxTime float64
}

// QosTable keeps the lower layer classification of every delivered packet,
// keyed by (frame id, packet index). A duplicate delivery overwrites the entry.
type QosTable struct {
	entries map[models.QosKey]qosEntry
}

func NewQosTable() *QosTable {
	return &QosTable{entries: make(map[models.QosKey]qosEntry)}
}

func (q *QosTable) Put(key models.QosKey, info models.QosInfo, rxTime float64) {
	q.entries[key] = qosEntry{info: info, rxTime: rxTime}
}

func (q *QosTable) Get(key models.QosKey) (models.QosInfo, bool) {
	e, ok := q.entries[key]
	return e.info, ok
}

func (q *QosTable) Len() int {
	return len(q.entries)
}

// Records joins the table with the frame types known to lookup, sorted by key.
func (q *QosTable) Records(lookup func(frameId uint32) (models.FrameType, bool)) []models.QosRecord {
	records := make([]models.QosRecord, 0, len(q.entries))
	for key, e := range q.entries {
		r := models.QosRecord{QosKey: key, QosInfo: e.info, RxTime: e.rxTime}
		if lookup != nil {
			r.Type, r.TypeKnown = lookup(key.FrameId)
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].FrameId != records[j].FrameId {
			return records[i].FrameId < records[j].FrameId
		}
		return records[i].PacketIndex < records[j].PacketIndex
	})
	return records
}
