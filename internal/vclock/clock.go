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

// Package vclock exposes the discrete event scheduler that drives a
// simulation run. All callbacks run on the goroutine that called Run, one at
// a time, in nondecreasing virtual time.
package vclock

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// EventHandle identifies a scheduled callback. The zero value is never issued.
type EventHandle uint64

// Clock is the scheduler collaborator consumed by the sender, the channel and the receiver.
type Clock interface {
	// Now returns the current virtual time in seconds.
	Now() float64
	// ScheduleAt runs fn at virtual time at, or immediately after the
	// current event when at lies in the past.
	ScheduleAt(at float64, fn func()) EventHandle
	// Schedule runs fn delay seconds from now.
	Schedule(delay float64, fn func()) EventHandle
	// Cancel prevents a pending callback from running. It reports whether
	// the callback was still pending.
	Cancel(h EventHandle) bool
}

type EventClock struct {
	mgr     *evtm.EventManager
	nextId  EventHandle
	pending map[EventHandle]func()
}

func NewEventClock() *EventClock {
	return &EventClock{
		mgr:     evtm.New(),
		pending: make(map[EventHandle]func()),
	}
}

func (c *EventClock) Now() float64 {
	return c.mgr.CurrentSeconds()
}

func (c *EventClock) ScheduleAt(at float64, fn func()) EventHandle {
	return c.Schedule(at-c.Now(), fn)
}

func (c *EventClock) Schedule(delay float64, fn func()) EventHandle {
	if delay < 0 {
		delay = 0
	}
	c.nextId++
	h := c.nextId
	c.pending[h] = fn
	c.mgr.Schedule(c, h, fireEvent, vrtime.SecondsToTime(delay))
	return h
}

func (c *EventClock) Cancel(h EventHandle) bool {
	if _, ok := c.pending[h]; !ok {
		return false
	}
	delete(c.pending, h)
	return true
}

// Pending returns the number of callbacks scheduled and not yet run or cancelled.
func (c *EventClock) Pending() int {
	return len(c.pending)
}

// Run processes events until the queue drains or virtual time passes limit seconds.
func (c *EventClock) Run(limit float64) {
	c.mgr.Run(limit)
}

func fireEvent(_ *evtm.EventManager, context any, data any) any {
	c := context.(*EventClock)
	h := data.(EventHandle)
	fn, ok := c.pending[h]
	if !ok {
		return nil
	}
	delete(c.pending, h)
	fn()
	return nil
}
