// Package service provides the race operations shared by every transport.
//
// GameService sits between the transports (REST, WebSocket, MCP) and the
// session layer. It resolves race configs by name, creates and looks up
// races, and turns transport requests into calls on a session.Race, which
// in turn runs them on the race's own frame goroutine.
//
// Core Interfaces:
//
// GameService is the main service interface. SessionManager stores races;
// ConfigManager loads, lists and saves race configurations.
//
// Usage:
//
//	races := session.NewManager(session.Options{Logger: log})
//	configs, _ := config.NewManager("configs")
//	svc := service.NewGameService(races, configs, log)
//
//	race, err := svc.CreateRace(ctx, "default")
//	car, err := svc.Join(ctx, race.ID, session.JoinRequest{Name: "Ada"})
//	svc.StartRace(ctx, race.ID)
//
// Errors from the layers below are passed through wrapped, so callers test
// them with errors.Is against session.ErrRaceNotFound,
// session.ErrVehicleNotFound, ErrConfigNotFound and overlay.ErrNoQuestion.
package service
