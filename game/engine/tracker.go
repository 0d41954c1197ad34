package engine

// Evaluate advances checkpoint progress for one vehicle. Only the next
// checkpoint in order is tested; reaching it emits CheckpointReached, and
// wrapping past the last one emits LapCompleted after it.
//
// The checkpoint that just fired stays latched until the vehicle leaves its
// trigger zone, so it cannot fire twice in one approach even when it is also
// the next target.
func Evaluate(v Vehicle, track *TrackGeometry, tick uint64) (Vehicle, []Event) {
	if track == nil || len(track.Checkpoints) == 0 || v.Finished {
		return v, nil
	}

	if v.Latched != "" {
		if cp, ok := checkpointByID(track, v.Latched); !ok || PlanarDistance(v.Position, cp.Position) > cp.TriggerRadius {
			v.Latched = ""
		}
	}

	if v.NextCheckpointIndex < 0 || v.NextCheckpointIndex >= len(track.Checkpoints) {
		v.NextCheckpointIndex = 0
	}
	target := track.Checkpoints[v.NextCheckpointIndex]
	if target.ID == v.Latched {
		return v, nil
	}
	if PlanarDistance(v.Position, target.Position) > target.TriggerRadius {
		return v, nil
	}

	events := []Event{{
		Kind:         EventCheckpointReached,
		VehicleID:    v.ID,
		CheckpointID: target.ID,
		Tick:         tick,
	}}
	v.Latched = target.ID
	v.NextCheckpointIndex++

	if v.NextCheckpointIndex >= len(track.Checkpoints) {
		v.CurrentLap++
		v.NextCheckpointIndex = 0
		events = append(events, Event{
			Kind:      EventLapCompleted,
			VehicleID: v.ID,
			Lap:       v.CurrentLap,
			Tick:      tick,
		})
		if v.TotalLaps > 0 && v.CurrentLap >= v.TotalLaps {
			v.Finished = true
		}
	}
	return v, events
}

func checkpointByID(track *TrackGeometry, id string) (Checkpoint, bool) {
	for _, cp := range track.Checkpoints {
		if cp.ID == id {
			return cp, true
		}
	}
	return Checkpoint{}, false
}
