package overlay

import (
	"errors"
	"fmt"
	"math"

	"github.com/wricardo/circuit-challenge/game/engine"
)

var (
	ErrNoQuestion    = errors.New("no question is being presented")
	ErrInvalidAnswer = errors.New("answer index out of range")
)

// Outcome is how a presented question was resolved
type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
	OutcomeTimeout Outcome = "timeout"
	OutcomeSkipped Outcome = "skipped"

	// boostFraction of top speed is added to velocity on a correct answer
	boostFraction         = 0.25
	defaultSpeedReduction = 0.5
)

// Target is the engine surface the overlay acts on
type Target interface {
	ApplyImpulse(id string, imp engine.Impulse) bool
	GetProfile() engine.Profile
	GetVehicle(id string) (engine.Vehicle, bool)
}

// Prompt is a question currently shown to a vehicle's driver. The correct
// answer is withheld.
type Prompt struct {
	VehicleID    string   `json:"vehicle_id"`
	CheckpointID string   `json:"checkpoint_id"`
	QuestionID   string   `json:"question_id"`
	Text         string   `json:"question_text"`
	Options      []string `json:"options"`
	PresentedAt  uint64   `json:"presented_at"`
	Deadline     uint64   `json:"deadline"`
}

// Remaining returns the frames left before the prompt times out
func (p Prompt) Remaining(tick uint64) uint64 {
	if tick >= p.Deadline {
		return 0
	}
	return p.Deadline - tick
}

// Result is the resolution of one prompt
type Result struct {
	VehicleID     string  `json:"vehicle_id"`
	CheckpointID  string  `json:"checkpoint_id"`
	QuestionID    string  `json:"question_id"`
	Outcome       Outcome `json:"outcome"`
	AnswerIndex   int     `json:"answer_index"`
	CorrectAnswer int     `json:"correct_answer"`
	Explanation   string  `json:"explanation,omitempty"`
	Points        int     `json:"points"`
	Frames        uint64  `json:"frames"`
}

// Tally is the running question record of one vehicle
type Tally struct {
	Answered   int `json:"answered"`
	Correct    int `json:"correct"`
	Score      int `json:"score"`
	Streak     int `json:"streak"`
	BestStreak int `json:"best_streak"`
}

// Accuracy is the rounded percentage of answered questions that were
// correct
func (t Tally) Accuracy() int {
	if t.Answered == 0 {
		return 0
	}
	return int(math.Round(float64(t.Correct) / float64(t.Answered) * 100))
}

// Options configures an Overlay
type Options struct {
	FPS       int
	OnPresent func(p Prompt)
	OnResolve func(r Result)
}

type vehicleState struct {
	prompt     *Prompt
	question   engine.Question
	holdUntil  uint64
	boostUntil uint64
	asked      map[string]bool
	lap        int
	askedLap   int
	tally      Tally
}

// Overlay turns checkpoint events into timed questions and gates each
// vehicle's throttle while one is open. It is driven from the engine's
// frame context and is not safe for concurrent use.
type Overlay struct {
	rules     engine.RaceRules
	questions []engine.Question
	target    Target
	opts      Options

	tick   uint64
	next   int
	states map[string]*vehicleState
}

// New creates an overlay over a question bank. An empty bank never presents.
func New(rules engine.RaceRules, questions []engine.Question, target Target, opts Options) *Overlay {
	if opts.FPS <= 0 {
		opts.FPS = engine.FramesPerSecond
	}
	if rules.QuestionFrequency == "" {
		rules.QuestionFrequency = engine.FrequencyOncePerCheckpoint
	}
	return &Overlay{
		rules:     rules,
		questions: append([]engine.Question(nil), questions...),
		target:    target,
		opts:      opts,
		states:    make(map[string]*vehicleState),
	}
}

// Bind sets the engine the overlay applies rewards and penalties to. The
// engine usually takes the overlay as its gate, so it is bound afterwards.
func (o *Overlay) Bind(target Target) {
	o.target = target
}

func (o *Overlay) state(vehicleID string) *vehicleState {
	s, ok := o.states[vehicleID]
	if !ok {
		s = &vehicleState{asked: make(map[string]bool), askedLap: -1}
		o.states[vehicleID] = s
	}
	return s
}

func (o *Overlay) frames(ms int) uint64 {
	if ms <= 0 {
		return 0
	}
	return uint64(ms * o.opts.FPS / 1000)
}

// CheckpointReached presents a question when the frequency rule allows it.
// It reports whether a prompt was opened.
func (o *Overlay) CheckpointReached(vehicleID, checkpointID string) bool {
	if len(o.questions) == 0 {
		return false
	}
	s := o.state(vehicleID)
	if s.prompt != nil || o.finished(vehicleID) {
		return false
	}

	switch o.rules.QuestionFrequency {
	case engine.FrequencyOncePerCheckpoint:
		if s.asked[checkpointID] {
			return false
		}
	case engine.FrequencyEveryLap:
		if s.askedLap == s.lap {
			return false
		}
	}
	s.asked[checkpointID] = true
	s.askedLap = s.lap

	q := o.questions[o.next%len(o.questions)]
	o.next++

	limit := q.TimeLimit
	if limit <= 0 {
		limit = o.rules.TimePerQuestion
	}
	if limit <= 0 {
		limit = engine.DefaultTimePerQuestion
	}

	s.question = q
	s.prompt = &Prompt{
		VehicleID:    vehicleID,
		CheckpointID: checkpointID,
		QuestionID:   q.ID,
		Text:         q.Text,
		Options:      append([]string(nil), q.Options...),
		PresentedAt:  o.tick,
		Deadline:     o.tick + uint64(limit*o.opts.FPS),
	}
	if o.opts.OnPresent != nil {
		o.opts.OnPresent(*s.prompt)
	}
	return true
}

// finished reports whether the vehicle has completed its race. The final
// checkpoint of the last lap is reported before the lap itself.
func (o *Overlay) finished(vehicleID string) bool {
	if o.target == nil {
		return false
	}
	v, ok := o.target.GetVehicle(vehicleID)
	return ok && v.Finished
}

// LapCompleted records lap progress for the every_lap rule
func (o *Overlay) LapCompleted(vehicleID string, lap int) {
	o.state(vehicleID).lap = lap
}

// Tick advances the overlay clock and times out expired prompts
func (o *Overlay) Tick(tick uint64) {
	o.tick = tick
	for id, s := range o.states {
		if s.prompt != nil && tick >= s.prompt.Deadline {
			o.resolve(id, s, OutcomeTimeout, -1)
		}
	}
}

// Gate suppresses throttle while a prompt is open or a penalty hold is
// running, and holds it open during a reward boost
func (o *Overlay) Gate(vehicleID string, in engine.ControlInput) engine.ControlInput {
	s, ok := o.states[vehicleID]
	if !ok {
		return in
	}
	if s.prompt != nil || o.tick < s.holdUntil {
		in.Accelerate = false
		return in
	}
	if o.tick < s.boostUntil {
		in.Accelerate = true
		in.Brake = false
	}
	return in
}

// Answer resolves the open prompt with the chosen option
func (o *Overlay) Answer(vehicleID string, index int) (Result, error) {
	s, ok := o.states[vehicleID]
	if !ok || s.prompt == nil {
		return Result{}, fmt.Errorf("answer for %q: %w", vehicleID, ErrNoQuestion)
	}
	if index < 0 || index >= len(s.question.Options) {
		return Result{}, fmt.Errorf("answer %d for %q: %w", index, vehicleID, ErrInvalidAnswer)
	}
	outcome := OutcomeWrong
	if index == s.question.CorrectAnswer {
		outcome = OutcomeCorrect
	}
	return o.resolve(vehicleID, s, outcome, index), nil
}

// Skip closes the open prompt without reward or penalty
func (o *Overlay) Skip(vehicleID string) (Result, error) {
	s, ok := o.states[vehicleID]
	if !ok || s.prompt == nil {
		return Result{}, fmt.Errorf("skip for %q: %w", vehicleID, ErrNoQuestion)
	}
	return o.resolve(vehicleID, s, OutcomeSkipped, -1), nil
}

func (o *Overlay) resolve(vehicleID string, s *vehicleState, outcome Outcome, index int) Result {
	p := *s.prompt
	s.prompt = nil

	res := Result{
		VehicleID:     vehicleID,
		CheckpointID:  p.CheckpointID,
		QuestionID:    p.QuestionID,
		Outcome:       outcome,
		AnswerIndex:   index,
		CorrectAnswer: s.question.CorrectAnswer,
		Explanation:   s.question.Explanation,
		Frames:        o.tick - p.PresentedAt,
	}

	maxSpeed := 0.0
	if o.target != nil {
		maxSpeed = o.target.GetProfile().MaxSpeed
	}

	switch outcome {
	case OutcomeCorrect:
		reward := o.rules.CorrectReward
		res.Points = reward.Points
		s.tally.Answered++
		s.tally.Correct++
		s.tally.Streak++
		if s.tally.Streak > s.tally.BestStreak {
			s.tally.BestStreak = s.tally.Streak
		}
		s.boostUntil = o.tick + o.frames(reward.SpeedBoostMS)
		if o.target != nil && reward.SpeedBoostMS > 0 {
			o.target.ApplyImpulse(vehicleID, engine.Impulse{VelocityDelta: maxSpeed * boostFraction})
		}
	case OutcomeWrong, OutcomeTimeout:
		penalty := o.rules.IncorrectPenalty
		res.Points = -penalty.PointsDeduction
		s.tally.Answered++
		s.tally.Streak = 0
		s.holdUntil = o.tick + o.frames(penalty.TimePenaltyMS)
		reduction := penalty.SpeedReduction
		if reduction == 0 && penalty.TimePenaltyMS > 0 {
			reduction = defaultSpeedReduction
		}
		if o.target != nil && reduction > 0 {
			o.target.ApplyImpulse(vehicleID, engine.Impulse{Scale: true, VelocityScale: 1 - reduction})
		}
	}
	s.tally.Score += res.Points

	if o.opts.OnResolve != nil {
		o.opts.OnResolve(res)
	}
	return res
}

// Active returns the open prompt for a vehicle
func (o *Overlay) Active(vehicleID string) (Prompt, bool) {
	s, ok := o.states[vehicleID]
	if !ok || s.prompt == nil {
		return Prompt{}, false
	}
	return *s.prompt, true
}

// Tally returns a vehicle's question record
func (o *Overlay) Tally(vehicleID string) Tally {
	if s, ok := o.states[vehicleID]; ok {
		return s.tally
	}
	return Tally{}
}

// Remove forgets a vehicle
func (o *Overlay) Remove(vehicleID string) {
	delete(o.states, vehicleID)
}
