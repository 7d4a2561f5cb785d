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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
)

type RunReportResponse struct {
	SimulationId string                   `json:"simulationId"`
	Status       SimulationStatus         `json:"status"`
	Summary      models.RunSummary        `json:"summary"`
	Export       *models.RunNotification  `json:"export,omitempty"`
	Frames       []models.FrameStatistics `json:"frames,omitempty"`
}

func (app *VideoSimulatorApp) handleInitSimulation(w http.ResponseWriter, r *http.Request) {

	config := DefaultSimulationProfile()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read request body", http.StatusBadRequest)
		return
	}
	switch {
	case len(body) > 0:
		if err := json.Unmarshal(body, config); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	case app.config.SimConfig != nil:
		config = app.config.SimConfig
	}

	if err := app.InitNewSimulation(config); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrRunInProgress) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	app.writeStatus(w)
}

func (app *VideoSimulatorApp) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	if err := app.StartSimulation(); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrRunInProgress):
			status = http.StatusConflict
		case errors.Is(err, ErrNotConfigured):
			status = http.StatusPreconditionFailed
		}
		http.Error(w, err.Error(), status)
		return
	}
	app.writeStatus(w)
}

func (app *VideoSimulatorApp) handleStatusSimulation(w http.ResponseWriter, r *http.Request) {
	app.writeStatus(w)
}

func (app *VideoSimulatorApp) handleStopSimulation(w http.ResponseWriter, r *http.Request) {
	if err := app.StopSimulation(); err != nil {
		http.Error(w, "could not stop simulation: "+err.Error(), http.StatusConflict)
		return
	}
	app.writeStatus(w)
}

// handleReport serves the last finished run. Per frame rows are included
// with ?frames=true.
func (app *VideoSimulatorApp) handleReport(w http.ResponseWriter, r *http.Request) {
	runReport, export := app.LastReport()
	if runReport == nil {
		http.Error(w, "no finished simulation", http.StatusNotFound)
		return
	}

	resp := RunReportResponse{
		SimulationId: runReport.SimId,
		Status:       app.GetCurrentSimulationStatus().Status,
		Summary:      runReport.Summary,
		Export:       export,
	}
	if r.URL.Query().Get("frames") == "true" {
		resp.Frames = runReport.Frames
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "could not encode response", http.StatusInternalServerError)
	}
}

func (app *VideoSimulatorApp) writeStatus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(app.GetCurrentSimulationStatus())
	if err != nil {
		http.Error(w, "could not encode response", http.StatusInternalServerError)
	}
}

func (app *VideoSimulatorApp) router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/video-simulator/v1/configure", app.handleInitSimulation).Methods("POST")
	router.HandleFunc("/video-simulator/v1/start", app.handleStartSimulation).Methods("POST")
	router.HandleFunc("/video-simulator/v1/status", app.handleStatusSimulation).Methods("GET")
	router.HandleFunc("/video-simulator/v1/stop", app.handleStopSimulation).Methods("POST")
	router.HandleFunc("/video-simulator/v1/report", app.handleReport).Methods("GET")

	// register run notification api
	app.exporter.RegisterNorthboundAPIs(router)
	return router
}

func (app *VideoSimulatorApp) startHttpServer() {
	app.wg.Add(1)

	h2server := &http2.Server{}
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.OamPort),
		Handler: h2c.NewHandler(app.router(), h2server),
	}

	go func() {
		defer func() {
			_ = recover()
			app.wg.Done()
		}()

		log.Printf("serving simulation api on :%d", app.config.OamPort)
		// always returns error. ErrServerClosed on graceful close
		if err := app.server.ListenAndServe(); err != http.ErrServerClosed {
			// unexpected error. port in use?
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

}

func (app *VideoSimulatorApp) stopHttpServer() {
	if app.server != nil {
		err := app.server.Close()
		if err != nil {
			log.Default().Printf("could not stop nbi server")
		}
	}

}
