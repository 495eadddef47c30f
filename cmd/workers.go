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
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// workerCommands runs the worker pool and lease reaper in the foreground.
// SIGINT/SIGTERM begin the drain: no new leases, in-flight jobs get the
// configured window to finish.
func workerCommands(b *leadsyncInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start leadsync sync workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			b.engine.StartWorkers(ctx)
			log.Printf(" [*] Workers started. To exit press CTRL+C")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			sig := <-quit

			if b.engine.Shutdown("signal: " + sig.String()) {
				log.Println("Workers drained cleanly")
			} else {
				log.Println("Drain window elapsed, leases left for the reaper")
			}
		},
	}

	return cmd
}
