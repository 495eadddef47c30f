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

	"github.com/spf13/cobra"
)

// syncCommands enqueues a run from the leads table: fetch a batch of
// unsynced leads, mark them as syncing and hand them to the queue. The
// workers command does the actual pushing.
func syncCommands(b *leadsyncInstance) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "enqueue unsynced leads from the database as a run",
		Run: func(cmd *cobra.Command, args []string) {
			runID, count, err := b.engine.EnqueueFromStore(context.Background(), limit)
			if err != nil {
				log.Fatalf("Error enqueueing leads: %v", err)
			}
			if count == 0 {
				log.Println("No unsynced leads found")
				return
			}
			log.Printf("Enqueued %d leads as run %s", count, runID)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "maximum number of leads to enqueue")

	return cmd
}
