/*
Copyright 2025 Onai Agency Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/onaiagency/leadsync"
	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/database"
	"github.com/onaiagency/leadsync/internal/notification"
)

// LeadSyncCLI represents the CLI application, encapsulating the root Cobra command.
type LeadSyncCLI struct {
	cmd *cobra.Command
	app *leadsyncInstance
}

// leadsyncInstance holds the engine instance and its configuration, shared
// across subcommands.
type leadsyncInstance struct {
	engine *leadsync.LeadSync
	cnf    *config.Configuration
}

// recoverPanic contains a panic anywhere in command execution: the fault is
// reported through the shutdown coordinator so operators are notified and
// in-flight jobs get the drain window before the process exits.
func (w LeadSyncCLI) recoverPanic() {
	if rec := recover(); rec != nil {
		err := fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		if w.app.engine != nil {
			w.app.engine.Coordinator().Fatal(err)
			w.app.engine.Shutdown("panic")
		} else {
			notification.NotifyError(err)
		}
		// Leave a beat for the async operator notification to go out.
		time.Sleep(2 * time.Second)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the engine before running
// any command.
func preRun(app *leadsyncInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("leadsync.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupEngine(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.engine = engine
		app.cnf = cnf

		return nil
	}
}

// setupEngine creates the engine from the configuration: postgres datasource
// first, then the full wiring.
func setupEngine(cfg *config.Configuration) (*leadsync.LeadSync, error) {
	db, err := database.NewDataSource(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	engine, err := leadsync.NewLeadSync(db)
	if err != nil {
		return nil, fmt.Errorf("error creating leadsync: %v", err)
	}
	return engine, nil
}

// NewCLI creates the command-line interface for the sync engine.
func NewCLI() *LeadSyncCLI {
	var configFile string
	b := &leadsyncInstance{}

	var rootCmd = &cobra.Command{
		Use:   "leadsync",
		Short: "Bulk lead-to-CRM synchronization engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./leadsync.json", "Configuration file for leadsync")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(syncCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &LeadSyncCLI{cmd: rootCmd, app: b}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w LeadSyncCLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	cli := NewCLI()
	defer cli.recoverPanic()
	cli.executeCLI()
}
