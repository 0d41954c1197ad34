// Package api provides the HTTP REST API for races.
//
// Endpoints:
//
// Races:
//   - POST /api/races - Create a race from a config ({"config_id": "sprint"})
//   - GET /api/races - List races (?sort=created|accessed&order=asc|desc&limit=n)
//   - GET /api/races/{id} - Race state
//   - DELETE /api/races/{id} - Close and delete a race
//   - POST /api/races/{id}/start, POST /api/races/{id}/stop
//   - GET /api/races/{id}/standings, GET /api/races/{id}/checkpoints
//
// Vehicles:
//   - POST /api/races/{id}/vehicles - Join ({"id", "name", "color", "bot"})
//   - GET /api/races/{id}/vehicles/{vid} - Vehicle status and open question
//   - DELETE /api/races/{id}/vehicles/{vid} - Leave
//   - POST /api/races/{id}/vehicles/{vid}/controls - Set {"accelerate", "brake", "left", "right"}
//   - POST /api/races/{id}/vehicles/{vid}/answer - Answer the open question ({"answer": 2})
//   - POST /api/races/{id}/vehicles/{vid}/skip - Skip the open question
//
// Configuration:
//   - GET /api/configs, GET /api/configs/{name}
//   - POST /api/configs - Save a race config ({"config_id": "...", ...RaceConfig})
//
// Streaming and health:
//   - GET /ws?race={id} - WebSocket stream, see package websocket
//   - GET /health
//
// Errors are returned as {"error": "message"}: unknown races, vehicles and
// configs give 404, malformed input 400, actions that conflict with race
// state (no open question, full race, duplicate id) 409, and closed races
// 410.
package api
