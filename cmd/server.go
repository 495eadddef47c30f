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
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/onaiagency/leadsync/api"
	"github.com/onaiagency/leadsync/internal/traces"
)

// serverCommands starts the HTTP API. Telemetry is wired when enabled; the
// server shuts down gracefully on SIGINT/SIGTERM.
func serverCommands(b *leadsyncInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start leadsync api server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if b.cnf.EnableTelemetry {
				shutdown, err := traces.SetupOTelSDK(ctx, b.cnf.ProjectName)
				if err != nil {
					log.Printf("error setting up OTel SDK: %v", err)
				} else {
					defer func() {
						if err := shutdown(ctx); err != nil {
							log.Printf("error shutting down OTel SDK: %v", err)
						}
					}()
				}
			}

			router := api.NewAPI(b.engine).Router()
			server := &http.Server{
				Addr:    ":" + b.cnf.Server.Port,
				Handler: router,
			}

			go func() {
				log.Printf("Starting server on http://localhost:%s", b.cnf.Server.Port)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Server forced to shutdown: %v\n", err)
			}
			b.engine.Shutdown("server stopping")
			log.Println("Server exiting")
		},
	}

	return cmd
}
