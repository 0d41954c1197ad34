// Package config manages the race configurations stored as JSON files in a
// config directory.
//
// A race configuration names the variant (2d or 3d), the world size, an
// optional authored track layout, the session rules (laps, question
// frequency, time per question, rewards and penalties) and the question
// bank. Files are validated with engine.ValidateRaceConfig when loaded and
// before they are saved.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		return err
//	}
//	race, err := manager.LoadConfig("chase")
//	all, err := manager.ListConfigs()
//
// The default configuration is default.json when present, otherwise the
// first valid file, otherwise engine.DefaultRaceConfig.
package config
