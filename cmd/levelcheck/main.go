// Command levelcheck verifies Parcel Run level files offline. It validates
// every level against the schema and the board rules, reports reachability
// and fuel budgets, and prints a greedy move sequence that clears a level.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/parcel-run/game/config"
	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/game/progress"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "levelcheck",
		Usage: "validate, analyze and solve Parcel Run levels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "levels-dir",
				Aliases: []string{"d"},
				Value:   "levels",
				Usage:   "directory containing level_<n>.json/.yaml files",
				Sources: cli.EnvVars("LEVELS_DIR"),
			},
			&cli.StringFlag{
				Name:  "rules",
				Usage: "YAML file overriding tile symbols and costs",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log level warnings while loading",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "parse every level (or the given ids) and report failures",
				ArgsUsage: "[level ids...]",
				Action:    runValidate,
			},
			{
				Name:      "analyze",
				Usage:     "report size, reachability and greedy fuel budget per level",
				ArgsUsage: "[level ids...]",
				Action:    runAnalyze,
			},
			{
				Name:      "solve",
				Usage:     "print a nearest-destination move sequence for one level",
				ArgsUsage: "<level id>",
				Action:    runSolve,
			},
		},
	}
}

// openCatalog builds the level catalog from the shared flags
func openCatalog(cmd *cli.Command) (*config.Manager, error) {
	var rules *engine.Rules
	if path := cmd.String("rules"); path != "" {
		loaded, err := config.LoadRules(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		rules = loaded
	}

	logger := slog.New(slog.DiscardHandler)
	if cmd.Bool("verbose") {
		logger = slog.New(slog.NewTextHandler(errOutput(cmd), nil))
	}
	return config.NewManager(cmd.String("levels-dir"), rules, logger)
}

// levelIDs resolves positional ids, defaulting to every contiguous level
func levelIDs(cmd *cli.Command, catalog *config.Manager) ([]int, error) {
	if cmd.Args().Len() == 0 {
		ids := make([]int, catalog.LevelCount())
		for i := range ids {
			ids[i] = i + 1
		}
		return ids, nil
	}
	ids := make([]int, 0, cmd.Args().Len())
	for _, arg := range cmd.Args().Slice() {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid level id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errOutput(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	catalog, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	ids, err := levelIDs(cmd, catalog)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no levels found in %s", cmd.String("levels-dir"))
	}

	w := output(cmd)
	failed := 0
	for _, id := range ids {
		level, err := catalog.LoadLevel(id)
		if err != nil {
			failed++
			fmt.Fprintf(w, "❌ level %d: %v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "✅ level %d %q (%dx%d, %d packages)\n", id, level.Name, level.Width, level.Height, level.Packages)
		for _, warning := range level.Warnings {
			fmt.Fprintf(w, "   ⚠️  %s\n", warning)
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d levels failed validation", failed, len(ids)), 1)
	}
	return nil
}

func runAnalyze(ctx context.Context, cmd *cli.Command) error {
	catalog, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	ids, err := levelIDs(cmd, catalog)
	if err != nil {
		return err
	}

	w := output(cmd)
	for _, id := range ids {
		fmt.Fprintf(w, "\n=== Level %d ===\n", id)
		level, err := catalog.LoadLevel(id)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			continue
		}
		writeAnalysis(w, AnalyzeLevel(level, catalog.Rules()))
	}
	return nil
}

func writeAnalysis(w io.Writer, a *Analysis) {
	level := a.Level
	fmt.Fprintf(w, "Name: %s\n", level.Name)
	fmt.Fprintf(w, "Grid: %d x %d\n", level.Width, level.Height)
	fmt.Fprintf(w, "Start: (%d, %d)\n", level.Start.Row, level.Start.Col)
	fmt.Fprintf(w, "Fuel: %d  Battery: %d\n", level.InitialFuel, level.HintBattery)
	fmt.Fprintf(w, "Destinations: %d (%d reachable)\n", len(level.Destinations), a.Reachable)

	for _, p := range a.Unreachable {
		fmt.Fprintf(w, "⚠️  Unreachable destination at (%d, %d)\n", p.Row, p.Col)
	}

	tour := a.Tour
	switch {
	case len(level.Destinations) == 0:
		fmt.Fprintf(w, "⚠️  Nothing to deliver\n")
	case tour.Fits(level):
		fmt.Fprintf(w, "✅ Greedy route uses %d of %d fuel in %d moves\n", tour.FuelUsed, level.InitialFuel, len(tour.Moves))
	case len(tour.Unreachable) == 0:
		fmt.Fprintf(w, "⚠️  Greedy route needs %d fuel, level gives %d\n", tour.FuelUsed, level.InitialFuel)
	}
}

func runSolve(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("solve takes exactly one level id", 2)
	}
	catalog, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	ids, err := levelIDs(cmd, catalog)
	if err != nil {
		return err
	}
	id := ids[0]

	level, err := catalog.LoadLevel(id)
	if err != nil {
		return err
	}

	rules := catalog.Rules()
	tour := PlanTour(level, rules)
	if len(tour.Unreachable) > 0 {
		return cli.Exit(fmt.Sprintf("level %d has %d unreachable destinations", id, len(tour.Unreachable)), 1)
	}

	state, err := Replay(catalog, progress.NewMemoryStore(), rules, id, tour.Moves)
	if err != nil {
		return err
	}

	w := output(cmd)
	moves := make([]string, len(tour.Moves))
	for i, m := range tour.Moves {
		moves[i] = string(m)
	}
	fmt.Fprintf(w, "Level %d %q\n", id, level.Name)
	fmt.Fprintf(w, "Moves (%d): %s\n", len(moves), strings.Join(moves, " "))
	fmt.Fprintf(w, "Fuel: %d used of %d\n", tour.FuelUsed, level.InitialFuel)
	fmt.Fprintf(w, "Result: %s\n", state.State)

	if state.State != engine.LevelComplete {
		return cli.Exit("greedy route does not clear the level", 1)
	}
	return nil
}
