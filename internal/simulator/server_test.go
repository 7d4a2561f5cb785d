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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

const shortProfileJson = `{
	"gopSize": 12,
	"packetSize": 100,
	"receiverStartS": 0.1,
	"senderStartS": 0.2,
	"stopS": 0.6,
	"channel": {"rateMbps": 100, "delayMs": 1}
}`

func call(t *testing.T, r *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) SimulationStatusResponse {
	t.Helper()
	resp := SimulationStatusResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestSimulationLifecycle(t *testing.T) {
	app := NewVideoSimulatorApp(&AppConfig{OutputDir: t.TempDir()})
	r := app.router()

	rec := call(t, r, "POST", "/video-simulator/v1/start", "")
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = call(t, r, "POST", "/video-simulator/v1/configure", shortProfileJson)
	require.Equal(t, http.StatusOK, rec.Code)
	configured := decodeStatus(t, rec)
	require.Equal(t, CONFIGURED, configured.Status)
	require.NotEmpty(t, configured.SimulationId)

	require.Equal(t, http.StatusNotFound, call(t, r, "GET", "/video-simulator/v1/report", "").Code)

	rec = call(t, r, "POST", "/video-simulator/v1/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	app.Wait()

	rec = call(t, r, "GET", "/video-simulator/v1/status", "")
	require.Equal(t, COMPLETED, decodeStatus(t, rec).Status)

	rec = call(t, r, "GET", "/video-simulator/v1/report?frames=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := RunReportResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Equal(t, configured.SimulationId, report.SimulationId)
	require.Equal(t, COMPLETED, report.Status)
	require.Positive(t, report.Summary.Frames)
	require.Len(t, report.Frames, report.Summary.Frames)
	require.NotNil(t, report.Export)
	require.NotEmpty(t, report.Export.SummaryFile)
	require.NotEmpty(t, report.Export.QosFile)

	require.Equal(t, http.StatusConflict, call(t, r, "POST", "/video-simulator/v1/stop", "").Code)

	// a finished run restarts under a new id
	rec = call(t, r, "POST", "/video-simulator/v1/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	restarted := decodeStatus(t, rec)
	require.NotEqual(t, configured.SimulationId, restarted.SimulationId)
	app.Wait()
}

func TestConfigureRejectsInvalidProfile(t *testing.T) {
	app := NewVideoSimulatorApp(&AppConfig{})
	r := app.router()

	require.Equal(t, http.StatusBadRequest, call(t, r, "POST", "/video-simulator/v1/configure", `{"gopSize": 2}`).Code)
	require.Equal(t, http.StatusBadRequest, call(t, r, "POST", "/video-simulator/v1/configure", `{`).Code)
	require.Equal(t, STOPPED, app.GetCurrentSimulationStatus().Status)
}

func TestConfigureFallsBackToFileProfile(t *testing.T) {
	profile := shortProfile()
	profile.GopSize = 24
	app := NewVideoSimulatorApp(&AppConfig{SimConfig: profile})
	r := app.router()

	rec := call(t, r, "POST", "/video-simulator/v1/configure", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint32(24), app.profile.GopSize)
}

func TestStopInterruptsRun(t *testing.T) {
	profile := shortProfile()
	profile.StopS = 3600
	profile.ReceiverStopS = 3600
	app := NewVideoSimulatorApp(&AppConfig{})
	require.NoError(t, app.InitNewSimulation(profile))
	require.NoError(t, app.StartSimulation())
	require.ErrorIs(t, app.StartSimulation(), ErrRunInProgress)
	require.ErrorIs(t, app.InitNewSimulation(shortProfile()), ErrRunInProgress)

	require.NoError(t, app.StopSimulation())
	require.Equal(t, STOPPED, app.GetCurrentSimulationStatus().Status)

	runReport, export := app.LastReport()
	require.NotNil(t, runReport)
	require.NotNil(t, export)
	require.Empty(t, export.SummaryFile)
	require.ErrorIs(t, app.StopSimulation(), ErrNotRunning)
}

func TestRunBatch(t *testing.T) {
	app := NewVideoSimulatorApp(&AppConfig{SimConfig: shortProfile()})
	runReport, err := app.RunBatch()
	require.NoError(t, err)
	require.Positive(t, runReport.Summary.Frames)
	require.Equal(t, COMPLETED, app.GetCurrentSimulationStatus().Status)
}
