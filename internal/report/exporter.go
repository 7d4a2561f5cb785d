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
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/giuliocarot0/gitc"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

const ExporterTask = "EXPORTER"

type Subscription struct {
	SubscriptionId string `json:"subscriptionId,omitempty"`
	NotifUri       string `json:"notifUri"`
}

// Exporter persists analyzed runs and notifies subscribers once they are written.
type Exporter struct {
	ExporterId    string
	OutputDir     string
	Subscriptions map[string]Subscription
	SubMutex      sync.RWMutex
	replyTo       string
}

func NewExporter(outputDir string) *Exporter {
	return &Exporter{
		ExporterId:    "video-exporter",
		OutputDir:     outputDir,
		Subscriptions: make(map[string]Subscription),
		SubMutex:      sync.RWMutex{},
	}
}

// FilePath names an output artifact of kind for the run tagged tag.
func FilePath(dir string, kind string, tag string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", kind, tag))
}

// InitExporter starts the exporter task. Notifications are echoed to the
// replyTo task when it is not empty.
func (e *Exporter) InitExporter(replyTo string) {
	log.Printf("[%s] started", e.ExporterId)
	e.replyTo = replyTo

	err := gitc.StartTask(ExporterTask, func(msg gitc.Message) {
		switch msg.Type {
		case models.SimulatorToExporterType:
			e.handleRunReport(msg.Payload.(*models.RunReportMsg))
		}
	}, 1024)
	if err != nil {
		log.Fatalf("[%s] could not start exporter task: %s", e.ExporterId, err.Error())
	}
}

func (e *Exporter) handleRunReport(msg *models.RunReportMsg) {
	notification := e.Export(msg)
	e.Notify(notification)

	if e.replyTo == "" {
		return
	}
	if err := gitc.Send(ExporterTask, e.replyTo, models.ExporterToSimulatorType, notification); err != nil {
		log.Printf("[%s] could not report export of %s: %v", e.ExporterId, msg.SimId, err)
	}
}

// Export writes the summary and QoS tables of a run. Sink failures are logged
// and leave the corresponding file name empty in the notification.
func (e *Exporter) Export(msg *models.RunReportMsg) *models.RunNotification {
	notification := &models.RunNotification{
		NotifId:   uuid.New().String(),
		SimId:     msg.SimId,
		TimeStamp: msg.TimeStamp,
		Summary:   msg.Summary,
	}
	if e.OutputDir == "" {
		return notification
	}
	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		log.Printf("[%s] output directory unavailable: %v", e.ExporterId, err)
		return notification
	}

	summaryFile := FilePath(e.OutputDir, "stats", msg.Tag)
	if err := writeFile(summaryFile, func(f *os.File) error { return WriteSummary(f, msg.Frames) }); err != nil {
		log.Printf("[%s] could not export summary: %v", e.ExporterId, err)
	} else {
		notification.SummaryFile = summaryFile
		log.Printf("[%s] %d frames written to %s", e.ExporterId, len(msg.Frames), summaryFile)
	}

	if len(msg.Qos) > 0 {
		qosFile := FilePath(e.OutputDir, "qos", msg.Tag)
		if err := writeFile(qosFile, func(f *os.File) error { return WriteQos(f, msg.Qos) }); err != nil {
			log.Printf("[%s] could not export qos table: %v", e.ExporterId, err)
		} else {
			notification.QosFile = qosFile
		}
	}
	return notification
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Notify posts the notification to every subscriber.
func (e *Exporter) Notify(notification *models.RunNotification) {
	e.SubMutex.RLock()
	defer e.SubMutex.RUnlock()

	if len(e.Subscriptions) == 0 {
		return
	}
	callbackBody, err := json.Marshal(notification)
	if err != nil {
		log.Printf("[%s] error while marshalling notification: %s", e.ExporterId, err.Error())
		return
	}

	for _, sub := range e.Subscriptions {
		go func(url string, data []byte) {
			resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
			if err != nil {
				log.Printf("[%s] error notifying subscriber %s: %v", e.ExporterId, url, err)
				return
			}
			defer func() {
				_ = resp.Body.Close()
			}()
		}(sub.NotifUri, callbackBody)
	}
}

// NORTHBOUND Definitions

func (e *Exporter) HandleNewSubscription(w http.ResponseWriter, r *http.Request) {
	sub := &Subscription{}
	if err := json.NewDecoder(r.Body).Decode(sub); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if sub.NotifUri == "" {
		http.Error(w, "could not find notifUri information", http.StatusBadRequest)
		return
	}
	sub.SubscriptionId = uuid.New().String()

	e.SubMutex.Lock()
	e.Subscriptions[sub.SubscriptionId] = *sub
	e.SubMutex.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(sub); err != nil {
		http.Error(w, "could not encode response", http.StatusInternalServerError)
	}
	log.Printf("[%s] created new subscription for: %s", e.ExporterId, sub.NotifUri)
}

func (e *Exporter) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	e.SubMutex.RLock()
	subs := make([]Subscription, 0, len(e.Subscriptions))
	for _, s := range e.Subscriptions {
		subs = append(subs, s)
	}
	e.SubMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(subs); err != nil {
		http.Error(w, "could not encode response", http.StatusInternalServerError)
	}
}

func (e *Exporter) HandleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["subscriptionId"]

	e.SubMutex.Lock()
	_, ok := e.Subscriptions[id]
	delete(e.Subscriptions, id)
	e.SubMutex.Unlock()

	if !ok {
		http.Error(w, "subscription not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	log.Printf("[%s] removed subscription %s", e.ExporterId, id)
}

func (e *Exporter) RegisterNorthboundAPIs(r *mux.Router) {
	r.HandleFunc("/video-simulator/v1/subscriptions", e.HandleNewSubscription).Methods("POST")
	r.HandleFunc("/video-simulator/v1/subscriptions", e.HandleListSubscriptions).Methods("GET")
	r.HandleFunc("/video-simulator/v1/subscriptions/{subscriptionId}", e.HandleDeleteSubscription).Methods("DELETE")
	log.Printf("[%s] subscriptions API has been registered", e.ExporterId)
}
