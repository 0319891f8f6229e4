// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates service setup and route registration.
package leads

import (
	"lead_engine_backend/internal/automation"
	"lead_engine_backend/internal/channel"
	"lead_engine_backend/internal/events"
	apphttp "lead_engine_backend/internal/http"
	"lead_engine_backend/internal/leads/handler"
	"lead_engine_backend/internal/leads/management"
	"lead_engine_backend/internal/leads/repository"
	"lead_engine_backend/internal/lock"
	"lead_engine_backend/internal/reactivation"
	"lead_engine_backend/internal/templates"
	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/config"
	"lead_engine_backend/platform/logger"
	"lead_engine_backend/platform/validator"
)

// Deps are the shared collaborators built by the composition root.
type Deps struct {
	Store    repository.Store
	Catalog  templates.Store
	Channel  channel.Channel
	Locker   lock.Locker
	Clock    clock.Clock
	EventBus events.Bus
	Config   config.EngineConfig
	Log      *logger.Logger
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	val          *validator.Validator
	management   *management.Service
	automation   *automation.Service
	reactivation *reactivation.Service
}

// NewModule creates the leads module and subscribes the automation guards to lead updates.
func NewModule(deps Deps, val *validator.Validator) *Module {
	cfg := deps.Config

	autoSvc := automation.New(automation.Deps{
		Repo:    deps.Store,
		Catalog: deps.Catalog,
		Channel: deps.Channel,
		Locker:  deps.Locker,
		Clock:   deps.Clock,
		Events:  deps.EventBus,
		Log:     deps.Log,
	}, automation.Options{
		Parallelism:     cfg.GetParallelism(),
		StoreTimeout:    cfg.GetStoreTimeout(),
		DispatchTimeout: cfg.GetDispatchTimeout(),
	})
	autoSvc.RegisterHandlers(deps.EventBus)

	reactSvc := reactivation.New(reactivation.Deps{
		Repo:    deps.Store,
		Catalog: deps.Catalog,
		Channel: deps.Channel,
		Locker:  deps.Locker,
		Clock:   deps.Clock,
		Events:  deps.EventBus,
		Log:     deps.Log,
	}, reactivation.Options{
		StoreTimeout:       cfg.GetStoreTimeout(),
		DispatchTimeout:    cfg.GetDispatchTimeout(),
		FollowUpTemplateID: reactivation.FollowUpTemplateID,
	})

	mgmtSvc := management.New(deps.Store, deps.EventBus, deps.Clock, cfg.GetStaleThresholdDays(), deps.Log)

	return &Module{
		val:          val,
		management:   mgmtSvc,
		automation:   autoSvc,
		reactivation: reactSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ManagementService returns the lead management service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// AutomationService returns the sequence engine, used by the scheduler.
func (m *Module) AutomationService() *automation.Service {
	return m.automation
}

// ReactivationService returns the reactivation service for external use.
func (m *Module) ReactivationService() *reactivation.Service {
	return m.reactivation
}

// RegisterRoutes mounts leads, priorities, automation and reactivation routes.
// Routes that dispatch messages sit behind ctx.SendLimit.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.V1.Group("/leads")

	h := handler.New(m.management, m.val)
	h.RegisterRoutes(leadsGroup)
	h.RegisterPriorityRoutes(ctx.V1.Group("/priorities"))

	handler.NewAutomationHandler(m.automation, m.val, ctx.SendLimit).RegisterRoutes(leadsGroup)
	handler.NewReactivationHandler(m.reactivation, m.val, ctx.SendLimit).RegisterRoutes(ctx.V1.Group("/reactivation"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
