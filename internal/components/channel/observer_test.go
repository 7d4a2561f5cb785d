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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

func TestObserverAccessCategories(t *testing.T) {
	o := NewObserver(false, 0, 0)
	expected := map[uint8]models.AccessCategory{
		0: models.AcBestEffort,
		1: models.AcBackground,
		2: models.AcBackground,
		3: models.AcBestEffort,
		4: models.AcVideo,
		5: models.AcVideo,
		6: models.AcVoice,
		7: models.AcVoice,
	}
	for tid, ac := range expected {
		info := o.Observe(tid, 0)
		require.Equal(t, ac, info.AccessCategory, "tid %d", tid)
		require.Equal(t, tid, info.Tid)
		require.False(t, info.IsAggregated)
		require.Zero(t, info.AggregationRefNumber)
	}
}

func TestObserverAggregation(t *testing.T) {
	o := NewObserver(true, 1, 3)

	a := o.Observe(models.PriorityVideo, 0.0000)
	b := o.Observe(models.PriorityVideo, 0.0005)
	c := o.Observe(models.PriorityBestEffort, 0.0006) // class change
	d := o.Observe(models.PriorityBestEffort, 0.0100) // window expired
	e := o.Observe(models.PriorityBestEffort, 0.0101)
	f := o.Observe(models.PriorityBestEffort, 0.0102)
	g := o.Observe(models.PriorityBestEffort, 0.0103) // group full

	require.True(t, a.IsAggregated)
	require.Equal(t, a.AggregationRefNumber, b.AggregationRefNumber)
	require.NotEqual(t, b.AggregationRefNumber, c.AggregationRefNumber)
	require.NotEqual(t, c.AggregationRefNumber, d.AggregationRefNumber)
	require.Equal(t, d.AggregationRefNumber, e.AggregationRefNumber)
	require.Equal(t, d.AggregationRefNumber, f.AggregationRefNumber)
	require.NotEqual(t, f.AggregationRefNumber, g.AggregationRefNumber)
	require.Equal(t, uint32(4), g.AggregationRefNumber)
}
