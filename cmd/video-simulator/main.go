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

package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"gitlab.eurecom.fr/open-exposure/coresim/video-simulator/internal/simulator"
)

func main() {
	configPath := flag.String("config", "config/videosim.yaml", "path to the simulator configuration file")
	batch := flag.Bool("batch", false, "run the configured simulation profile once and exit")
	outputDir := flag.String("output", "", "override the output directory of the configuration file")
	flag.Parse()

	cfg := simulator.InitConfig(*configPath)
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	app := simulator.NewVideoSimulatorApp(cfg)
	if !*batch {
		app.Run()
		return
	}

	if cfg.SimConfig == nil {
		log.Fatalf("batch mode requires a simulation profile in %s", *configPath)
	}
	runReport, err := app.RunBatch()
	if err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runReport.Summary); err != nil {
		log.Fatalf("could not encode summary: %v", err)
	}
}
