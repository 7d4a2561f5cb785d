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
	"errors"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/components/channel"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/components/receiver"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/trafficgen"
)

type AppConfig struct {
	OamPort       uint16 `yaml:"oamPort"`
	MetricsPort   uint16 `yaml:"metricsPort"`
	InitOnStartup bool   `yaml:"initOnStartup"`
	OutputDir     string `yaml:"outputDir"`
	/* Custom configuration parameters */
	SimConfig *SimulationProfile `yaml:"simulationProfile"`
}

type SimulationProfile struct {
	GopSize         uint32  `yaml:"gopSize" json:"gopSize"`
	PacketSize      int     `yaml:"packetSize" json:"packetSize"`
	FrameIntervalMs float64 `yaml:"frameIntervalMs" json:"frameIntervalMs"`
	PacketGapUs     float64 `yaml:"packetGapUs" json:"packetGapUs"`
	PriorityMarking bool    `yaml:"priorityMarking" json:"priorityMarking"`
	DeadlineMs      float64 `yaml:"deadlineMs" json:"deadlineMs"`
	WarmupPackets   uint32  `yaml:"warmupPackets" json:"warmupPackets"`
	WarmupDelayMs   float64 `yaml:"warmupDelayMs" json:"warmupDelayMs"`

	// application timeline, virtual seconds
	ReceiverStartS float64 `yaml:"receiverStartS" json:"receiverStartS"`
	SenderStartS   float64 `yaml:"senderStartS" json:"senderStartS"`
	StopS          float64 `yaml:"stopS" json:"stopS"`
	ReceiverStopS  float64 `yaml:"receiverStopS" json:"receiverStopS"`

	PacketCounts models.PacketCountPolicy `yaml:"packetCounts" json:"packetCounts"`
	Channel      channel.LinkConfig       `yaml:"channel" json:"channel"`
	PacketLog    bool                     `yaml:"packetLog" json:"packetLog"`
}

func DefaultSimulationProfile() *SimulationProfile {
	return &SimulationProfile{
		GopSize:         12,
		PacketSize:      1400,
		FrameIntervalMs: 33,
		PacketGapUs:     100,
		PriorityMarking: true,
		DeadlineMs:      receiver.DefaultDeadlineMs,
		WarmupPackets:   5,
		WarmupDelayMs:   100,
		ReceiverStartS:  0.5,
		SenderStartS:    1.0,
		StopS:           10.0,
		PacketCounts:    models.DefaultPacketCountPolicy(),
		Channel:         channel.DefaultLinkConfig(),
		PacketLog:       true,
	}
}

// UnmarshalYAML seeds the profile with DefaultSimulationProfile so omitted keys
// get the same values as on the configure endpoint.
func (p *SimulationProfile) UnmarshalYAML(value *yaml.Node) error {
	type plain SimulationProfile
	seeded := plain(*DefaultSimulationProfile())
	if err := value.Decode(&seeded); err != nil {
		return err
	}
	*p = SimulationProfile(seeded)
	return nil
}

// ApplyDefaults fills the fields left to their zero value.
func (p *SimulationProfile) ApplyDefaults() {
	def := DefaultSimulationProfile()
	if p.GopSize == 0 {
		p.GopSize = def.GopSize
	}
	if p.PacketSize == 0 {
		p.PacketSize = def.PacketSize
	}
	if p.FrameIntervalMs == 0 {
		p.FrameIntervalMs = def.FrameIntervalMs
	}
	if p.DeadlineMs == 0 {
		p.DeadlineMs = def.DeadlineMs
	}
	if p.StopS == 0 {
		p.StopS = def.StopS
	}
	if p.ReceiverStopS == 0 {
		// leave one second for in-flight packets
		p.ReceiverStopS = p.StopS + 1
	}
	if p.PacketCounts == (models.PacketCountPolicy{}) {
		p.PacketCounts = def.PacketCounts
	}
	if p.Channel.RateMbps == 0 {
		p.Channel.RateMbps = def.Channel.RateMbps
	}
	if p.Channel.GoodToBad == 0 && p.Channel.BadToGood == 0 {
		p.Channel.BadToGood = def.Channel.BadToGood
	}
	if p.Channel.AggregationMaxPackets == 0 {
		p.Channel.AggregationMaxPackets = def.Channel.AggregationMaxPackets
	}
}

func probability(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
	}
	return nil
}

func (p *SimulationProfile) Validate() error {
	if err := trafficgen.ValidateGopSize(p.GopSize); err != nil {
		return err
	}
	if p.PacketSize < 0 {
		return errors.New("packetSize must not be negative")
	}
	if p.FrameIntervalMs <= 0 {
		return errors.New("frameIntervalMs must be positive")
	}
	if p.PacketGapUs < 0 || p.WarmupDelayMs < 0 || p.DeadlineMs < 0 {
		return errors.New("packetGapUs, warmupDelayMs and deadlineMs must not be negative")
	}
	if p.PacketCounts.I == 0 || p.PacketCounts.P == 0 || p.PacketCounts.B == 0 {
		return errors.New("packetCounts must be positive for every frame type")
	}
	if p.ReceiverStartS < 0 || p.SenderStartS < 0 {
		return errors.New("start times must not be negative")
	}
	if p.StopS <= p.SenderStartS {
		return fmt.Errorf("stopS (%v) must be after senderStartS (%v)", p.StopS, p.SenderStartS)
	}
	if p.ReceiverStopS < p.ReceiverStartS {
		return fmt.Errorf("receiverStopS (%v) must not precede receiverStartS (%v)", p.ReceiverStopS, p.ReceiverStartS)
	}
	c := p.Channel
	if c.RateMbps < 0 || c.DelayMs < 0 || c.JitterMs < 0 || c.MaxQueueMs < 0 {
		return errors.New("channel parameters must not be negative")
	}
	for name, v := range map[string]float64{
		"channel.goodToBad":  c.GoodToBad,
		"channel.badToGood":  c.BadToGood,
		"channel.lossInGood": c.LossInGood,
		"channel.lossInBad":  c.LossInBad,
	} {
		if err := probability(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Tag identifies the output files of a run.
func (p *SimulationProfile) Tag(simId string) string {
	short := simId
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("agg_%s_prio_%s_%s", onOff(p.Channel.Aggregation), onOff(p.PriorityMarking), short)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// LoadConfig reads and checks the YAML configuration at configPath.
func LoadConfig(configPath string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	cfg := AppConfig{}
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, err
	}

	if cfg.InitOnStartup && cfg.SimConfig == nil {
		return nil, errors.New("when initializing from startup, simulation profile must be defined in config file")
	}
	if cfg.SimConfig != nil {
		cfg.SimConfig.ApplyDefaults()
		if err := cfg.SimConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid simulation profile: %w", err)
		}
	}
	if cfg.OamPort == 0 {
		cfg.OamPort = 8081
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
	return &cfg, nil
}

func InitConfig(configPath string) *AppConfig {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	return cfg
}

func (cfg *AppConfig) Dumps() string {
	d, err := yaml.Marshal(&cfg)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	return string(d)
}

func (p *SimulationProfile) Dumps() string {
	d, err := yaml.Marshal(p)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	return string(d)
}
