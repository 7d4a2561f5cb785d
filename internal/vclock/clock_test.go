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

package vclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventClockOrdering(t *testing.T) {
	c := NewEventClock()
	var order []string
	var times []float64
	record := func(name string) func() {
		return func() {
			order = append(order, name)
			times = append(times, c.Now())
		}
	}

	c.ScheduleAt(0.3, record("c"))
	c.ScheduleAt(0.1, record("a"))
	c.Schedule(0.2, func() {
		record("b")()
		c.Schedule(0.05, record("b+"))
	})
	c.Run(1)

	require.Equal(t, []string{"a", "b", "b+", "c"}, order)
	require.InDeltaSlice(t, []float64{0.1, 0.2, 0.25, 0.3}, times, 1e-6)
	require.Zero(t, c.Pending())
}

func TestEventClockCancel(t *testing.T) {
	c := NewEventClock()
	fired := 0
	h := c.Schedule(0.5, func() { fired++ })
	c.Schedule(0.1, func() {
		require.True(t, c.Cancel(h))
	})
	require.Equal(t, 2, c.Pending())

	c.Run(1)
	require.Zero(t, fired)
	require.False(t, c.Cancel(h))
	require.False(t, c.Cancel(0))
	require.Zero(t, c.Pending())
}

func TestEventClockPastSchedulesRunNext(t *testing.T) {
	c := NewEventClock()
	var at float64
	c.ScheduleAt(0.4, func() {
		c.ScheduleAt(0.1, func() { at = c.Now() })
	})
	c.Run(1)
	require.InDelta(t, 0.4, at, 1e-6)
}
