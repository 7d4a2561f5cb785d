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

package simulator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/trafficgen"
)

const testConfigYaml = `
oamPort: 18081
initOnStartup: true
outputDir: /tmp/video-sim
simulationProfile:
  gopSize: 30
  packetSize: 1200
  priorityMarking: true
  senderStartS: 3
  stopS: 12
  packetCounts:
    i: 40
    p: 20
    b: 10
  channel:
    rateMbps: 20
    aggregation: true
    goodToBad: 0.01
    badToGood: 0.3
    lossInBad: 0.5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYaml))
	require.NoError(t, err)

	require.Equal(t, uint16(18081), cfg.OamPort)
	require.Equal(t, uint16(9090), cfg.MetricsPort)
	require.True(t, cfg.InitOnStartup)

	p := cfg.SimConfig
	require.NotNil(t, p)
	require.Equal(t, uint32(30), p.GopSize)
	require.Equal(t, 1200, p.PacketSize)
	require.Equal(t, 33.0, p.FrameIntervalMs)
	require.Equal(t, 33.3, p.DeadlineMs)
	require.Equal(t, 13.0, p.ReceiverStopS)
	require.Equal(t, models.PacketCountPolicy{I: 40, P: 20, B: 10}, p.PacketCounts)
	require.Equal(t, 20.0, p.Channel.RateMbps)
	require.Equal(t, 0.3, p.Channel.BadToGood)
	require.Equal(t, 64, p.Channel.AggregationMaxPackets)

	require.Contains(t, cfg.Dumps(), "gopSize: 30")
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "initOnStartup: true\n"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "simulationProfile:\n  gopSize: 2\n"))
	require.ErrorIs(t, err, trafficgen.ErrInvalidGopSize)
}

func TestProfileValidate(t *testing.T) {
	valid := func() *SimulationProfile {
		p := DefaultSimulationProfile()
		p.ApplyDefaults()
		return p
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(p *SimulationProfile){
		"gop":        func(p *SimulationProfile) { p.GopSize = 1 },
		"interval":   func(p *SimulationProfile) { p.FrameIntervalMs = -1 },
		"counts":     func(p *SimulationProfile) { p.PacketCounts.B = 0 },
		"timeline":   func(p *SimulationProfile) { p.StopS = p.SenderStartS },
		"receiver":   func(p *SimulationProfile) { p.ReceiverStopS = p.ReceiverStartS - 0.1 },
		"probablity": func(p *SimulationProfile) { p.Channel.LossInBad = 1.5 },
		"delay":      func(p *SimulationProfile) { p.Channel.DelayMs = -2 },
	}
	for name, mutate := range cases {
		p := valid()
		mutate(p)
		require.Error(t, p.Validate(), name)
	}
}

func TestProfileTag(t *testing.T) {
	p := DefaultSimulationProfile()
	require.Equal(t, "agg_off_prio_on_0123abcd", p.Tag("0123abcd-ffff-4000-8000-000000000000"))
	p.Channel.Aggregation = true
	p.PriorityMarking = false
	require.Equal(t, "agg_on_prio_off_short", p.Tag("short"))
}

func TestLoadConfigSeedsProfileDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "simulationProfile:\n  gopSize: 24\n  warmupPackets: 0\n  channel:\n    delayMs: 5\n"))
	require.NoError(t, err)

	p := cfg.SimConfig
	def := DefaultSimulationProfile()
	require.Equal(t, uint32(24), p.GopSize)
	require.Equal(t, def.PacketGapUs, p.PacketGapUs)
	require.Equal(t, def.WarmupDelayMs, p.WarmupDelayMs)
	require.Equal(t, def.SenderStartS, p.SenderStartS)
	require.Equal(t, def.ReceiverStartS, p.ReceiverStartS)
	require.True(t, p.PriorityMarking)
	require.Zero(t, p.WarmupPackets)
	require.Equal(t, 5.0, p.Channel.DelayMs)
	require.Equal(t, def.Channel.RateMbps, p.Channel.RateMbps)
	require.Equal(t, def.Channel.JitterMs, p.Channel.JitterMs)
}
