// Package config provides level and rules loading for Parcel Run.
//
// The config package handles:
//   - Discovering level files named level_<n>.json, .yaml or .yml
//   - Validating raw level documents against a JSON Schema
//   - Caching parsed levels and counting the contiguous level run
//   - Loading the tile and cost rules from rules.yaml
//
// Level Format:
//
//	{
//	  "level_name": "First Delivery",
//	  "initial_fuel": 12,
//	  "hint_battery": 1,
//	  "map_grid": ["S00#", "#0D0"]
//	}
//
// level_name is optional and defaults to "Unnamed Level". Levels are
// numbered from 1 and the first missing number ends the run, so
// level_1, level_2 and level_4 count as two levels.
//
// Usage:
//
//	manager, err := config.NewManager("levels", engine.DefaultRules(), logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadLevel(1)
//	total := manager.LevelCount()
package config
