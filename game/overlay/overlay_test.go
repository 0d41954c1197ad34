package overlay

import (
	"errors"
	"testing"

	"github.com/wricardo/circuit-challenge/game/engine"
)

type fakeTarget struct {
	impulses []engine.Impulse
	finished map[string]bool
}

func (f *fakeTarget) GetVehicle(id string) (engine.Vehicle, bool) {
	return engine.Vehicle{ID: id, Finished: f.finished[id]}, true
}

func (f *fakeTarget) ApplyImpulse(_ string, imp engine.Impulse) bool {
	f.impulses = append(f.impulses, imp)
	return true
}

func (f *fakeTarget) GetProfile() engine.Profile {
	return engine.Arcade2D(engine.Size{})
}

func newTestOverlay(rules engine.RaceRules) (*Overlay, *fakeTarget) {
	cfg := engine.DefaultRaceConfig()
	target := &fakeTarget{}
	return New(rules, cfg.Questions, target, Options{}), target
}

func defaultRules() engine.RaceRules {
	return engine.DefaultRaceConfig().Rules
}

func TestCheckpointPresentsQuestion(t *testing.T) {
	var presented []Prompt
	cfg := engine.DefaultRaceConfig()
	o := New(cfg.Rules, cfg.Questions, &fakeTarget{}, Options{OnPresent: func(p Prompt) { presented = append(presented, p) }})

	o.Tick(10)
	if !o.CheckpointReached("p1", "cp1") {
		t.Fatal("Expected a question on the first checkpoint")
	}
	p, ok := o.Active("p1")
	if !ok {
		t.Fatal("Expected an active prompt")
	}
	if p.QuestionID != "q1" || len(p.Options) != 4 || p.CheckpointID != "cp1" {
		t.Errorf("Unexpected prompt: %+v", p)
	}
	if p.Deadline != 10+30*60 {
		t.Errorf("Expected deadline 30s after presentation, got %d", p.Deadline)
	}
	if p.Remaining(100) != p.Deadline-100 || p.Remaining(p.Deadline+5) != 0 {
		t.Errorf("Unexpected remaining frames")
	}
	if len(presented) != 1 {
		t.Errorf("Expected OnPresent once, got %d", len(presented))
	}

	if o.CheckpointReached("p1", "cp2") {
		t.Error("Expected no second prompt while one is open")
	}
}

func TestGateWhilePresenting(t *testing.T) {
	o, _ := newTestOverlay(defaultRules())
	in := engine.ControlInput{Accelerate: true, Brake: true, Left: true}

	if got := o.Gate("p1", in); got != in {
		t.Errorf("Expected unknown vehicles to pass through, got %+v", got)
	}

	o.CheckpointReached("p1", "cp1")
	got := o.Gate("p1", in)
	if got.Accelerate {
		t.Error("Expected throttle to be suppressed while a question is open")
	}
	if !got.Brake || !got.Left {
		t.Errorf("Expected brake and steering to pass, got %+v", got)
	}
	if other := o.Gate("p2", in); !other.Accelerate {
		t.Error("Expected other vehicles to keep control")
	}
}

func TestAnswerCorrect(t *testing.T) {
	var results []Result
	cfg := engine.DefaultRaceConfig()
	target := &fakeTarget{}
	o := New(cfg.Rules, cfg.Questions, target, Options{OnResolve: func(r Result) { results = append(results, r) }})

	o.CheckpointReached("p1", "cp1")
	o.Tick(30)
	res, err := o.Answer("p1", 1)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if res.Outcome != OutcomeCorrect || res.Points != 100 || res.Frames != 30 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if len(target.impulses) != 1 || target.impulses[0].VelocityDelta != 75 {
		t.Errorf("Expected a +75 boost impulse, got %+v", target.impulses)
	}
	if _, ok := o.Active("p1"); ok {
		t.Error("Expected the prompt to close")
	}
	if len(results) != 1 {
		t.Errorf("Expected OnResolve once, got %d", len(results))
	}

	// 2000ms boost = 120 frames of held throttle
	o.Tick(149)
	if got := o.Gate("p1", engine.ControlInput{Brake: true}); !got.Accelerate || got.Brake {
		t.Errorf("Expected boost to hold the throttle, got %+v", got)
	}
	o.Tick(150)
	if got := o.Gate("p1", engine.ControlInput{}); got.Accelerate {
		t.Error("Expected boost to end after its duration")
	}

	tally := o.Tally("p1")
	if tally.Answered != 1 || tally.Correct != 1 || tally.Score != 100 || tally.Streak != 1 {
		t.Errorf("Unexpected tally: %+v", tally)
	}
}

func TestAnswerWrong(t *testing.T) {
	o, target := newTestOverlay(defaultRules())

	o.CheckpointReached("p1", "cp1")
	res, err := o.Answer("p1", 0)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if res.Outcome != OutcomeWrong || res.Points != -25 || res.CorrectAnswer != 1 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if len(target.impulses) != 1 || !target.impulses[0].Scale || target.impulses[0].VelocityScale != 0.5 {
		t.Errorf("Expected a halving impulse, got %+v", target.impulses)
	}

	// 1500ms hold = 90 frames
	o.Tick(89)
	if o.Gate("p1", engine.ControlInput{Accelerate: true}).Accelerate {
		t.Error("Expected throttle held during the penalty")
	}
	o.Tick(90)
	if !o.Gate("p1", engine.ControlInput{Accelerate: true}).Accelerate {
		t.Error("Expected throttle back after the penalty")
	}

	if tally := o.Tally("p1"); tally.Answered != 1 || tally.Correct != 0 || tally.Score != -25 {
		t.Errorf("Unexpected tally: %+v", tally)
	}
}

func TestTimeout(t *testing.T) {
	var results []Result
	rules := defaultRules()
	rules.TimePerQuestion = 2
	cfg := engine.DefaultRaceConfig()
	o := New(rules, cfg.Questions, &fakeTarget{}, Options{OnResolve: func(r Result) { results = append(results, r) }})

	o.CheckpointReached("p1", "cp1")
	o.Tick(119)
	if _, ok := o.Active("p1"); !ok {
		t.Fatal("Expected the prompt to be open before its deadline")
	}
	o.Tick(120)
	if _, ok := o.Active("p1"); ok {
		t.Fatal("Expected the prompt to time out")
	}
	if len(results) != 1 || results[0].Outcome != OutcomeTimeout || results[0].AnswerIndex != -1 {
		t.Errorf("Expected a timeout result, got %+v", results)
	}
	if o.Tally("p1").Answered != 1 {
		t.Error("Expected a timeout to count as answered")
	}
}

func TestQuestionTimeLimitOverridesRules(t *testing.T) {
	questions := []engine.Question{{ID: "fast", Text: "?", Options: []string{"a", "b", "c", "d"}, TimeLimit: 5}}
	o := New(defaultRules(), questions, nil, Options{FPS: 10})
	o.CheckpointReached("p1", "cp1")
	p, _ := o.Active("p1")
	if p.Deadline != 50 {
		t.Errorf("Expected deadline 50 frames at 10 fps, got %d", p.Deadline)
	}
}

func TestSkip(t *testing.T) {
	o, target := newTestOverlay(defaultRules())
	o.CheckpointReached("p1", "cp1")

	res, err := o.Skip("p1")
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if res.Outcome != OutcomeSkipped || res.Points != 0 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if len(target.impulses) != 0 {
		t.Errorf("Expected no impulse on skip, got %+v", target.impulses)
	}
	if tally := o.Tally("p1"); tally.Answered != 0 {
		t.Errorf("Expected skip not to count, got %+v", tally)
	}
	if !o.Gate("p1", engine.ControlInput{Accelerate: true}).Accelerate {
		t.Error("Expected control to resume after skip")
	}
}

func TestAnswerErrors(t *testing.T) {
	o, _ := newTestOverlay(defaultRules())
	if _, err := o.Answer("p1", 0); !errors.Is(err, ErrNoQuestion) {
		t.Errorf("Expected ErrNoQuestion, got %v", err)
	}
	if _, err := o.Skip("p1"); !errors.Is(err, ErrNoQuestion) {
		t.Errorf("Expected ErrNoQuestion, got %v", err)
	}

	o.CheckpointReached("p1", "cp1")
	if _, err := o.Answer("p1", 4); !errors.Is(err, ErrInvalidAnswer) {
		t.Errorf("Expected ErrInvalidAnswer, got %v", err)
	}
	if _, ok := o.Active("p1"); !ok {
		t.Error("Expected an invalid answer to leave the prompt open")
	}
}

func TestFrequencyRules(t *testing.T) {
	tests := []struct {
		name      string
		frequency string
		// sequence of (checkpoint, lapBefore) reached and whether a prompt opens
		steps []struct {
			cp   string
			lap  int
			want bool
		}
	}{
		{
			name:      "once per checkpoint",
			frequency: engine.FrequencyOncePerCheckpoint,
			steps: []struct {
				cp   string
				lap  int
				want bool
			}{{"cp1", 0, true}, {"cp2", 0, true}, {"cp1", 1, false}, {"cp2", 1, false}},
		},
		{
			name:      "every checkpoint",
			frequency: engine.FrequencyEveryCheckpoint,
			steps: []struct {
				cp   string
				lap  int
				want bool
			}{{"cp1", 0, true}, {"cp2", 0, true}, {"cp1", 1, true}},
		},
		{
			name:      "every lap",
			frequency: engine.FrequencyEveryLap,
			steps: []struct {
				cp   string
				lap  int
				want bool
			}{{"cp1", 0, true}, {"cp2", 0, false}, {"cp1", 1, true}, {"cp2", 1, false}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := defaultRules()
			rules.QuestionFrequency = tt.frequency
			o, _ := newTestOverlay(rules)
			for i, step := range tt.steps {
				o.LapCompleted("p1", step.lap)
				got := o.CheckpointReached("p1", step.cp)
				if got != step.want {
					t.Errorf("Step %d (%s lap %d): expected prompt=%v, got %v", i, step.cp, step.lap, step.want, got)
				}
				if got {
					o.Skip("p1")
				}
			}
		})
	}
}

func TestQuestionRotation(t *testing.T) {
	rules := defaultRules()
	rules.QuestionFrequency = engine.FrequencyEveryCheckpoint
	o, _ := newTestOverlay(rules)

	var ids []string
	for i := 0; i < 5; i++ {
		o.CheckpointReached("p1", "cp1")
		p, _ := o.Active("p1")
		ids = append(ids, p.QuestionID)
		o.Skip("p1")
	}
	want := []string{"q1", "q2", "q3", "q4", "q1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Prompt %d: expected %s, got %s", i, want[i], ids[i])
		}
	}
}

func TestEmptyBankNeverPresents(t *testing.T) {
	o := New(defaultRules(), nil, nil, Options{})
	if o.CheckpointReached("p1", "cp1") {
		t.Error("Expected no prompt without questions")
	}
	if got := o.Gate("p1", engine.ControlInput{Accelerate: true}); !got.Accelerate {
		t.Error("Expected control untouched")
	}
}

func TestTallyAccuracy(t *testing.T) {
	tests := []struct {
		tally Tally
		want  int
	}{
		{Tally{}, 0},
		{Tally{Answered: 3, Correct: 2}, 67},
		{Tally{Answered: 4, Correct: 4}, 100},
		{Tally{Answered: 8, Correct: 1}, 13},
	}
	for _, tt := range tests {
		if got := tt.tally.Accuracy(); got != tt.want {
			t.Errorf("Accuracy(%+v): expected %d, got %d", tt.tally, tt.want, got)
		}
	}
}

func TestEngineIntegration(t *testing.T) {
	cfg := engine.DefaultRaceConfig()
	sched := engine.NewManualScheduler()
	ov := New(cfg.Rules, cfg.Questions, nil, Options{})
	eng, err := engine.NewEngine(engine.NullSurface, engine.Config{Gate: ov, Scheduler: sched}, nil, engine.Callbacks{
		OnCheckpointReached: func(id, cp string) { ov.CheckpointReached(id, cp) },
		OnLapCompleted:      ov.LapCompleted,
		OnFrame:             ov.Tick,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	ov.Bind(eng)

	eng.AddVehicle("p1", "Ada", "")
	eng.UpdateVehicle("p1", engine.ControlInput{Accelerate: true})
	eng.Start()
	sched.Run(5)

	// The start position sits inside cp1, so a question opens immediately
	if _, ok := ov.Active("p1"); !ok {
		t.Fatal("Expected a prompt from the first checkpoint")
	}
	v, _ := eng.GetVehicle("p1")
	moving := v.Velocity

	sched.Run(10)
	v, _ = eng.GetVehicle("p1")
	if v.Velocity >= moving && moving > 0 {
		t.Errorf("Expected the gated vehicle to slow down, velocity went %v -> %v", moving, v.Velocity)
	}

	if _, err := ov.Answer("p1", 1); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	sched.Run(5)
	v, _ = eng.GetVehicle("p1")
	if v.Velocity <= 0 {
		t.Errorf("Expected the vehicle to move after answering, got %v", v.Velocity)
	}
}

func TestNoQuestionForFinishedVehicle(t *testing.T) {
	rules := defaultRules()
	rules.QuestionFrequency = engine.FrequencyEveryCheckpoint
	o, target := newTestOverlay(rules)
	target.finished = map[string]bool{"done": true}

	if o.CheckpointReached("done", "cp4") {
		t.Error("Expected no question after the final checkpoint")
	}
	if in := o.Gate("done", engine.ControlInput{Accelerate: true}); !in.Accelerate {
		t.Error("Expected a finished vehicle to keep its throttle")
	}
	if !o.CheckpointReached("racing", "cp4") {
		t.Error("Expected a question for a vehicle still racing")
	}
}

func TestEngineFinalCheckpointOpensNoQuestion(t *testing.T) {
	cfg := engine.DefaultRaceConfig()
	cfg.Rules.QuestionFrequency = engine.FrequencyEveryCheckpoint
	track := &engine.TrackGeometry{
		Path:        []engine.Vec3{{X: 100, Y: 100}, {X: 300, Y: 100}, {X: 200, Y: 300}},
		Checkpoints: []engine.Checkpoint{{ID: "only", Position: engine.Vec3{X: 100, Y: 100}, TriggerRadius: 20}},
	}
	sched := engine.NewManualScheduler()
	ov := New(cfg.Rules, cfg.Questions, nil, Options{})
	var laps int
	eng, err := engine.NewEngine(engine.NullSurface, engine.Config{
		Gate: ov, Scheduler: sched, Track: track, TotalLaps: 1,
	}, nil, engine.Callbacks{
		OnCheckpointReached: func(id, cp string) { ov.CheckpointReached(id, cp) },
		OnLapCompleted: func(id string, lap int) {
			laps++
			ov.LapCompleted(id, lap)
		},
		OnFrame: ov.Tick,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	ov.Bind(eng)

	if _, err := eng.AddVehicle("p1", "Ada", ""); err != nil {
		t.Fatalf("AddVehicle failed: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sched.Run(2)

	v, _ := eng.GetVehicle("p1")
	if !v.Finished || laps != 1 {
		t.Fatalf("Expected the single-lap race to finish on the first tick, got %+v after %d laps", v, laps)
	}
	if p, ok := ov.Active("p1"); ok {
		t.Errorf("Expected no question for the finished vehicle, got %+v", p)
	}
}
