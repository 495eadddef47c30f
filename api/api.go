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
package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/onaiagency/leadsync"
	"github.com/onaiagency/leadsync/api/middleware"
	"github.com/onaiagency/leadsync/config"
)

type Api struct {
	engine *leadsync.LeadSync
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/sync/runs", a.CreateRun)
	router.GET("/sync/runs/:id", a.GetRun)
	router.GET("/sync/runs/:id/stream", a.StreamRun)

	router.GET("/limiter/stats", a.GetLimiterStats)
	router.GET("/queue/depth", a.GetQueueDepth)

	router.GET("/integration-logs/failures", a.GetRecentFailures)
	router.GET("/integration-logs/stats", a.GetServiceStats)
	return a.router
}

func NewAPI(engine *leadsync.LeadSync) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{engine: engine, router: r}
}
