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
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/giuliocarot0/gitc"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/models"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/monitoring"
	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/report"
)

/* Simulation Controller code */

const SimulatorTask = "SIMULATOR"

type SimulationStatus string

const (
	CONFIGURED SimulationStatus = "CONFIGURED"
	STARTED    SimulationStatus = "STARTED"
	COMPLETED  SimulationStatus = "COMPLETED"
	STOPPED    SimulationStatus = "STOPPED"
	ERROR      SimulationStatus = "ERROR"
)

var (
	ErrRunInProgress = errors.New("a simulation run is in progress")
	ErrNotConfigured = errors.New("please configure the simulation via /configure")
	ErrNotRunning    = errors.New("no running instance")
)

type SimulationStatusResponse struct {
	Status       SimulationStatus
	SimulationId string `json:",omitempty"`
}

type VideoSimulatorApp struct {
	currentInstance *SimulationInstance
	profile         *SimulationProfile
	status          SimulationStatus
	instanceMutex   sync.RWMutex
	server          *http.Server
	wg              sync.WaitGroup
	ctx             context.Context
	config          *AppConfig
	exporter        *report.Exporter
	tasksRunning    bool

	runCancel  context.CancelFunc
	runDone    chan struct{}
	lastReport *models.RunReportMsg
	lastExport *models.RunNotification
}

func NewVideoSimulatorApp(config *AppConfig) *VideoSimulatorApp {
	return &VideoSimulatorApp{
		status:        STOPPED,
		instanceMutex: sync.RWMutex{},
		wg:            sync.WaitGroup{},
		config:        config,
		exporter:      report.NewExporter(config.OutputDir),
	}
}

func (app *VideoSimulatorApp) InitNewSimulation(profile *SimulationProfile) error {
	if profile == nil {
		return fmt.Errorf("no configuration provided, could not initialize")
	}
	profile.ApplyDefaults()
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid simulation profile: %w", err)
	}

	app.instanceMutex.Lock()
	defer app.instanceMutex.Unlock()

	if app.status == STARTED {
		return ErrRunInProgress
	}

	instance, err := NewSimulationInstance(profile, app.config.OutputDir)
	if err != nil {
		return fmt.Errorf("could not initialize the simulation instance: %w", err)
	}
	app.currentInstance = instance
	app.profile = profile
	app.status = CONFIGURED
	log.Printf("simulation %s configured:\n%s", instance.SimId(), profile.Dumps())
	return nil
}

// StartSimulation launches the configured run in the background. A finished
// run is replaced by a fresh instance of the same profile.
func (app *VideoSimulatorApp) StartSimulation() error {
	app.instanceMutex.Lock()
	defer app.instanceMutex.Unlock()

	if app.profile == nil {
		return ErrNotConfigured
	}
	if app.status == STARTED {
		return ErrRunInProgress
	}
	if app.status != CONFIGURED {
		instance, err := NewSimulationInstance(app.profile, app.config.OutputDir)
		if err != nil {
			app.status = ERROR
			return fmt.Errorf("could not start the simulation instance: %w", err)
		}
		app.currentInstance = instance
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.runCancel = cancel
	app.runDone = make(chan struct{})
	app.status = STARTED

	go app.runSimulation(ctx, app.currentInstance, app.runDone)
	return nil
}

func (app *VideoSimulatorApp) runSimulation(ctx context.Context, instance *SimulationInstance, done chan struct{}) {
	defer close(done)

	runReport, err := instance.Run(ctx)

	app.instanceMutex.Lock()
	switch {
	case err != nil:
		log.Printf("simulation %s failed: %v", instance.SimId(), err)
		app.status = ERROR
	case ctx.Err() != nil:
		app.status = STOPPED
	default:
		app.status = COMPLETED
	}
	app.lastReport = runReport
	app.instanceMutex.Unlock()

	if runReport != nil {
		app.export(runReport)
	}
}

// export hands the report to the exporter task, or exports inline when the
// tasks are not running.
func (app *VideoSimulatorApp) export(runReport *models.RunReportMsg) {
	if app.tasksRunning {
		if err := gitc.Send(SimulatorTask, report.ExporterTask, models.SimulatorToExporterType, runReport); err != nil {
			log.Printf("Error sending RunReportMsg for simulation %s: %v", runReport.SimId, err)
		}
		return
	}
	notification := app.exporter.Export(runReport)
	app.exporter.Notify(notification)
	app.setLastExport(notification)
}

func (app *VideoSimulatorApp) setLastExport(n *models.RunNotification) {
	app.instanceMutex.Lock()
	defer app.instanceMutex.Unlock()
	app.lastExport = n
}

func (app *VideoSimulatorApp) GetCurrentSimulationStatus() SimulationStatusResponse {
	app.instanceMutex.RLock()
	defer app.instanceMutex.RUnlock()

	resp := SimulationStatusResponse{Status: app.status}
	if app.currentInstance != nil {
		resp.SimulationId = app.currentInstance.SimId()
	}
	return resp
}

// StopSimulation interrupts the running simulation and waits for its report.
func (app *VideoSimulatorApp) StopSimulation() error {
	app.instanceMutex.Lock()
	if app.status != STARTED {
		app.instanceMutex.Unlock()
		return ErrNotRunning
	}
	cancel, done := app.runCancel, app.runDone
	app.instanceMutex.Unlock()

	cancel()
	<-done
	return nil
}

// Wait blocks until the current run, if any, has finished.
func (app *VideoSimulatorApp) Wait() {
	app.instanceMutex.RLock()
	done := app.runDone
	app.instanceMutex.RUnlock()
	if done != nil {
		<-done
	}
}

func (app *VideoSimulatorApp) LastReport() (*models.RunReportMsg, *models.RunNotification) {
	app.instanceMutex.RLock()
	defer app.instanceMutex.RUnlock()
	return app.lastReport, app.lastExport
}

func (app *VideoSimulatorApp) startTasks() {
	err := gitc.StartTask(SimulatorTask, func(msg gitc.Message) {
		switch msg.Type {
		case models.ExporterToSimulatorType:
			app.setLastExport(msg.Payload.(*models.RunNotification))
		}
	}, 1024)
	if err != nil {
		log.Fatalf("could not start simulator task: %s", err.Error())
	}
	app.exporter.InitExporter(SimulatorTask)
	app.tasksRunning = true
}

// RunBatch executes the profile of the configuration file once, without the
// control plane, and exports its results.
func (app *VideoSimulatorApp) RunBatch() (*models.RunReportMsg, error) {
	log.Printf("running config: \n%s", app.config.Dumps())
	if err := app.InitNewSimulation(app.config.SimConfig); err != nil {
		return nil, err
	}
	if err := app.StartSimulation(); err != nil {
		return nil, err
	}
	app.Wait()

	runReport, _ := app.LastReport()
	if app.GetCurrentSimulationStatus().Status == ERROR || runReport == nil {
		return nil, fmt.Errorf("simulation did not complete")
	}
	return runReport, nil
}

func (app *VideoSimulatorApp) Run() {

	var cancel context.CancelFunc
	app.ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	app.wg.Add(1)
	go app.listenShutdownEvent()
	log.Printf("running config: \n%s", app.config.Dumps())

	app.startTasks()

	if app.config.InitOnStartup {
		log.Printf("bootstraping simulation instance")
		err := app.InitNewSimulation(app.config.SimConfig)
		if err != nil {
			log.Fatalf("could not initialize the simulator on startup: %v", err)
		}
	}

	app.startHttpServer()
	monitoring.StartMetricsServer(int(app.config.MetricsPort))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Printf("terminating...")
	if err := app.StopSimulation(); err == nil {
		log.Printf("running simulation interrupted")
	}

	cancel()
	app.wg.Wait()
}

func (app *VideoSimulatorApp) listenShutdownEvent() {
	defer func() {
		_ = recover()
		app.wg.Done()
	}()

	<-app.ctx.Done()
	app.stopHttpServer()
}
