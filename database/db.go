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

package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/onaiagency/leadsync/config"
	"github.com/onaiagency/leadsync/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache *cache.RedisCache
}

// NewDataSource creates the shared postgres-backed datasource. The cache is
// optional; pass nil when redis-backed stat caching is not wanted.
func NewDataSource(configuration *config.Configuration, statsCache *cache.RedisCache) (IDataSource, error) {
	con, err := GetDBConnection(configuration, statsCache)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration, statsCache *cache.RedisCache) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: statsCache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createLeadTable(db)
	if err != nil {
		return nil, err
	}
	err = createIntegrationLogTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createLeadTable creates the leads table holding the records the sync engine
// pushes to the CRM.
func createLeadTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS leads (
			id SERIAL PRIMARY KEY,
			lead_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			email TEXT,
			phone TEXT NOT NULL,
			campaign_slug TEXT,
			payment_method TEXT,
			amount NUMERIC NOT NULL DEFAULT 0,
			utm_params JSONB DEFAULT '{}'::jsonb,
			sync_status TEXT NOT NULL DEFAULT 'pending',
			sync_attempts INT NOT NULL DEFAULT 0,
			last_sync_error TEXT,
			amo_contact_id BIGINT,
			amo_lead_id BIGINT,
			synced_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_leads_sync_status ON leads(sync_status);
	`)
	return err
}

// createIntegrationLogTable creates the append-only audit table for external
// calls.
func createIntegrationLogTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS integration_logs (
			id SERIAL PRIMARY KEY,
			log_id TEXT NOT NULL UNIQUE,
			service_name TEXT NOT NULL,
			action TEXT NOT NULL,
			status TEXT NOT NULL,
			related_entity_type TEXT,
			related_entity_id TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			error_message TEXT,
			error_code TEXT,
			retry_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_integration_logs_service ON integration_logs(service_name, created_at);
		CREATE INDEX IF NOT EXISTS idx_integration_logs_status ON integration_logs(status, created_at);
	`)
	return err
}
