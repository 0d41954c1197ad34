// Package mcp exposes races to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a request against the
// REST API of a running server, so agents and browser viewers share the
// same live races.
//
// Tools:
//   - create_race: create a race from a config
//   - list_races: list active races
//   - join_race: add a vehicle, optionally starting the race
//   - drive: set a vehicle's held controls and report its status
//   - answer_question: answer or skip the open checkpoint question
//   - standings: current race standings
//   - list_configs: available race configurations
//   - race_instructions: rules and driving tips
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := client.ServeStdio(); err != nil {
//		log.Fatal(err)
//	}
package mcp
