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
	"github.com/iti/rngstream"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

// newTransitions builds the two state Gilbert-Elliott chain of the link.
func newTransitions(cfg LinkConfig) map[models.ChannelState][]models.Transition {
	return map[models.ChannelState][]models.Transition{
		models.ChannelGood: {
			{To: models.ChannelBad, Probability: cfg.GoodToBad},      // burst starts
			{To: models.ChannelGood, Probability: 1 - cfg.GoodToBad}, // stays clean
		},
		models.ChannelBad: {
			{To: models.ChannelGood, Probability: cfg.BadToGood},   // burst ends
			{To: models.ChannelBad, Probability: 1 - cfg.BadToGood}, // burst goes on
		},
	}
}

func nextState(rng *rngstream.RngStream, transitions map[models.ChannelState][]models.Transition, current models.ChannelState) models.ChannelState {
	rnd := rng.RandU01()
	cumulative := 0.0
	for _, t := range transitions[current] {
		cumulative += t.Probability
		if rnd < cumulative {
			return t.To
		}
	}
	return current // fallback
}

func lossProbability(cfg LinkConfig, state models.ChannelState) float64 {
	if state == models.ChannelBad {
		return cfg.LossInBad
	}
	return cfg.LossInGood
}
