package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/game/service"
	"github.com/wricardo/circuit-challenge/game/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Circuit Challenge",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Circuit Challenge - MCP Interface

This is a thin client that proxies all requests to the REST API server.

RACE OBJECTIVE:
Drive your vehicle through every checkpoint in order and complete the laps.
Reaching a checkpoint may open a multiple-choice question: answer correctly
for a speed boost and points, a wrong answer or a timeout slows you down.

AVAILABLE TOOLS:
- create_race: Create a race from a config
- list_races: List active races
- join_race: Add your vehicle to a race (optionally starting it)
- drive: Set your vehicle's controls and see its status
- answer_question: Answer the question open for your vehicle
- standings: Current race standings
- list_configs: List available race configurations
- race_instructions: Full rules and driving tips`),
	)

	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_race",
		Description: "Create a new race with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": stringProp("ID of the config to use (optional)"),
			},
		},
	}, c.handleCreateRace)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_races",
		Description: "List all active races",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRaces)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_race",
		Description: "Join a race with a new vehicle",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id":    stringProp("Race ID"),
				"vehicle_id": stringProp("Vehicle ID to use (optional, generated when empty)"),
				"name":       stringProp("Display name"),
				"color":      stringProp("Vehicle color, e.g. #ff0000 (optional)"),
				"start":      boolProp("Start the race after joining"),
			},
			Required: []string{"race_id"},
		},
	}, c.handleJoinRace)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "drive",
		Description: "Set the controls of your vehicle. Controls stay applied until changed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id":    stringProp("Race ID"),
				"vehicle_id": stringProp("Vehicle ID"),
				"accelerate": boolProp("Hold the throttle"),
				"brake":      boolProp("Hold the brake"),
				"left":       boolProp("Steer left"),
				"right":      boolProp("Steer right"),
				"intent":     stringProp("Brief explanation of the intent behind this input"),
			},
			Required: []string{"race_id", "vehicle_id"},
		},
	}, c.handleDrive)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "answer_question",
		Description: "Answer the question currently open for your vehicle, or skip it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id":    stringProp("Race ID"),
				"vehicle_id": stringProp("Vehicle ID"),
				"answer": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"description": "Zero-based index of the chosen option",
				},
				"skip": boolProp("Skip the question without reward or penalty"),
			},
			Required: []string{"race_id", "vehicle_id"},
		},
	}, c.handleAnswer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "standings",
		Description: "Get the standings of a race",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": stringProp("Race ID"),
			},
			Required: []string{"race_id"},
		},
	}, c.handleStandings)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available race configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "race_instructions",
		Description: "Get race rules and driving tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRaceInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects
func (c *Client) ServeStdio() error {
	return server.ServeStdio(c.mcpServer)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleCreateRace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var race service.RaceInfo
	if err := c.apiCall(ctx, "POST", "/api/races", body, &race); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRaceInfo(&race)), nil
}

func (c *Client) handleListRaces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int                `json:"count"`
		Races []service.RaceInfo `json:"races"`
	}

	if err := c.apiCall(ctx, "GET", "/api/races", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Races (%d):\n\n", response.Count)
	for _, r := range response.Races {
		status := "stopped"
		if r.Running {
			status = "running"
		}
		fmt.Fprintf(&b, "- %s (Config: %s, %s, %d vehicles, Created: %s)\n",
			r.ID, r.ConfigName, status, len(r.Vehicles), r.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleJoinRace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raceID, _ := args["race_id"].(string)
	if raceID == "" {
		return mcp.NewToolResultError("race_id is required"), nil
	}

	req := session.JoinRequest{}
	req.ID, _ = args["vehicle_id"].(string)
	req.Name, _ = args["name"].(string)
	req.Color, _ = args["color"].(string)

	var status session.VehicleStatus
	if err := c.apiCall(ctx, "POST", "/api/races/"+raceID+"/vehicles", req, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Joined race %s as %s (%s)\n", raceID, status.Vehicle.ID, status.Vehicle.DisplayName)
	if start, _ := args["start"].(bool); start {
		var race service.RaceInfo
		if err := c.apiCall(ctx, "POST", "/api/races/"+raceID+"/start", nil, &race); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text += "Race started\n"
	}
	text += "\n" + formatVehicleStatus(&status)

	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleDrive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raceID, _ := args["race_id"].(string)
	vehicleID, _ := args["vehicle_id"].(string)

	// The intent argument is for the caller's own reasoning; it is not sent
	var in engine.ControlInput
	in.Accelerate, _ = args["accelerate"].(bool)
	in.Brake, _ = args["brake"].(bool)
	in.Left, _ = args["left"].(bool)
	in.Right, _ = args["right"].(bool)

	var status session.VehicleStatus
	path := fmt.Sprintf("/api/races/%s/vehicles/%s/controls", raceID, vehicleID)
	if err := c.apiCall(ctx, "POST", path, in, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatVehicleStatus(&status)), nil
}

func (c *Client) handleAnswer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raceID, _ := args["race_id"].(string)
	vehicleID, _ := args["vehicle_id"].(string)
	base := fmt.Sprintf("/api/races/%s/vehicles/%s", raceID, vehicleID)

	var result overlay.Result
	if skip, _ := args["skip"].(bool); skip {
		if err := c.apiCall(ctx, "POST", base+"/skip", nil, &result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatResult(&result)), nil
	}

	// JSON numbers arrive as float64
	raw, ok := args["answer"].(float64)
	if !ok {
		return mcp.NewToolResultError("answer is required unless skip is set"), nil
	}

	body := map[string]int{"answer": int(raw)}
	if err := c.apiCall(ctx, "POST", base+"/answer", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatResult(&result)), nil
}

func (c *Client) handleStandings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raceID, _ := args["race_id"].(string)

	var response struct {
		Standings []engine.Standing `json:"standings"`
	}
	if err := c.apiCall(ctx, "GET", "/api/races/"+raceID+"/standings", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStandings(raceID, response.Standings)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "- %s: %s (%s, %d laps, %d questions)\n  %s\n",
			cfg.ConfigID, cfg.Name, cfg.Variant, cfg.Laps, cfg.Questions, cfg.Description)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleRaceInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `CIRCUIT CHALLENGE - RACE RULES

GOAL
Complete the configured number of laps. A lap counts when your vehicle has
passed every checkpoint in order and returns to the first one.

DRIVING
- Controls are held until you change them: accelerate, brake, left, right.
- Steering only turns a moving vehicle; turning gets sharper with speed.
- Vehicles coast to a stop when no pedal is held.
- On 3D tracks leaving the road corridor pulls you back onto the centerline.

CHECKPOINTS
- Checkpoints must be passed in order; passing the wrong one does nothing.
- Each checkpoint triggers once per visit; leave its zone to re-arm it.

QUESTIONS
- Reaching a checkpoint may open a four-option question for your vehicle.
- While a question is open your throttle is cut; you can still steer and brake.
- Correct answer: points, plus a speed boost with the throttle held open.
- Wrong answer or timeout: points are deducted, speed is cut and the
  throttle is held off for a short penalty.
- Skipping closes the question with no reward and no penalty.

TIPS
1. Use drive with accelerate=true to get moving, then steer toward the
   next checkpoint shown by the vehicle status.
2. Check the vehicle status after each input; it shows any open question
   and the seconds left to answer.
3. Use standings to compare your lap and checkpoint progress with others.`

// Formatting helpers

func formatRaceInfo(race *service.RaceInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Race: %s\nConfig: %s (%s)\n", race.ID, race.ConfigName, race.Name)
	if race.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", race.Description)
	}
	fmt.Fprintf(&b, "Variant: %s | Laps: %d | Checkpoints: %d | Questions: %d\n",
		race.Variant, race.TotalLaps, len(race.Checkpoints), race.QuestionCount)
	status := "stopped"
	if race.Running {
		status = "running"
	}
	fmt.Fprintf(&b, "Status: %s at tick %d\n", status, race.Tick)
	return b.String()
}

func formatVehicleStatus(status *session.VehicleStatus) string {
	v := status.Vehicle
	var b strings.Builder
	fmt.Fprintf(&b, "Vehicle: %s (%s)\n", v.ID, v.DisplayName)
	fmt.Fprintf(&b, "Position: (%.1f, %.1f) Heading: %.2f rad\n", v.Position.X, v.Position.Y, v.Heading)
	fmt.Fprintf(&b, "Speed: %.1f (top %.1f)\n", v.Velocity, status.TopSpeed)
	fmt.Fprintf(&b, "Lap: %d/%d | Next checkpoint: %d\n", v.CurrentLap, v.TotalLaps, v.NextCheckpointIndex)
	fmt.Fprintf(&b, "Score: %d | Accuracy: %d%% | Streak: %d\n", status.Tally.Score, status.Accuracy, status.Tally.Streak)
	if v.Finished {
		fmt.Fprintf(&b, "🏁 FINISHED at tick %d\n", status.FinishedAt)
	}
	if p := status.Prompt; p != nil {
		fmt.Fprintf(&b, "\n❓ QUESTION (%.1fs left): %s\n", status.Remaining, p.Text)
		for i, opt := range p.Options {
			fmt.Fprintf(&b, "  %d) %s\n", i, opt)
		}
	}
	return b.String()
}

func formatResult(res *overlay.Result) string {
	var b strings.Builder
	switch res.Outcome {
	case overlay.OutcomeCorrect:
		b.WriteString("✓ Correct!")
	case overlay.OutcomeWrong:
		fmt.Fprintf(&b, "✗ Wrong, the answer was option %d.", res.CorrectAnswer)
	case overlay.OutcomeSkipped:
		b.WriteString("Question skipped.")
	case overlay.OutcomeTimeout:
		b.WriteString("⏱ Time ran out.")
	}
	fmt.Fprintf(&b, " Points: %+d\n", res.Points)
	if res.Explanation != "" {
		fmt.Fprintf(&b, "%s\n", res.Explanation)
	}
	return b.String()
}

func formatStandings(raceID string, standings []engine.Standing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Standings for %s:\n\n", raceID)
	if len(standings) == 0 {
		b.WriteString("No vehicles yet\n")
	}
	for _, s := range standings {
		mark := ""
		if s.Finished {
			mark = " 🏁"
		}
		fmt.Fprintf(&b, "%d. %s (%s) lap %d, %d checkpoints%s\n",
			s.Rank, s.DisplayName, s.VehicleID, s.Lap, s.CheckpointsPassed, mark)
	}
	return b.String()
}
