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

package monitoring

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_frames_generated_total",
			Help: "Total number of generated frames by type",
		},
		[]string{"simulationId", "type"},
	)

	PacketsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_packets_sent_total",
			Help: "Total number of packets handed to the transport by access category",
		},
		[]string{"simulationId", "class"},
	)

	PacketSendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_packet_send_failures_total",
			Help: "Total number of packets rejected by the transport",
		},
		[]string{"simulationId"},
	)

	PacketsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_packets_received_total",
			Help: "Total number of delivered packets by outcome",
		},
		[]string{"simulationId", "outcome"},
	)

	ChannelDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_channel_drops_total",
			Help: "Total number of packets dropped by the channel by reason",
		},
		[]string{"simulationId", "reason"},
	)

	EffectiveRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_effective_ratio_mean",
			Help: "Mean effective reception ratio of the last analyzed run",
		},
		[]string{"simulationId", "type"},
	)

	DeadlineHitRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_deadline_hit_rate",
			Help: "Share of frames completed within the latency deadline",
		},
		[]string{"simulationId"},
	)
)

func init() {
	prometheus.MustRegister(FramesGenerated, PacketsSent, PacketSendFailures, PacketsReceived, ChannelDrops, EffectiveRatio, DeadlineHitRate)
}

func StartMetricsServer(port int) {
	log.Printf("starting prometheus metrics server on :%d", port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not start metrics server: %s", err.Error())
		}
	}()
}
