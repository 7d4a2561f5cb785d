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

package channel

import "gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"

// Observer annotates packets leaving the link with the QoS information a
// radio trace would report: access category and aggregation grouping.
type Observer struct {
	aggregation bool
	windowMs    float64
	maxPackets  int

	nextRef uint32
	open    bool
	lastAc  models.AccessCategory
	lastTx  float64
	inGroup int
}

func NewObserver(aggregation bool, windowMs float64, maxPackets int) *Observer {
	return &Observer{
		aggregation: aggregation,
		windowMs:    windowMs,
		maxPackets:  maxPackets,
	}
}

// Observe returns the QoS annotation of a packet with user priority tid whose
// transmission ends at txTime.
func (o *Observer) Observe(tid uint8, txTime float64) *models.QosInfo {
	ac := models.AccessCategoryForTid(tid)
	info := &models.QosInfo{
		Tid:            tid,
		AccessCategory: ac,
	}
	if !o.aggregation {
		return info
	}

	joins := o.open && ac == o.lastAc && (txTime-o.lastTx)*1000 <= o.windowMs
	if joins && o.maxPackets > 0 && o.inGroup >= o.maxPackets {
		joins = false
	}
	if !joins {
		o.nextRef++
		o.inGroup = 0
		o.open = true
	}
	o.inGroup++
	o.lastAc = ac
	o.lastTx = txTime

	info.IsAggregated = true
	info.AggregationRefNumber = o.nextRef
	return info
}
