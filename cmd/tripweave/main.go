package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"tripweave/internal/analytics"
	"tripweave/internal/cmdlog"
	"tripweave/internal/config"
	"tripweave/internal/funnel"
	"tripweave/internal/ledger"
	"tripweave/internal/metrics"
	"tripweave/internal/model"
	"tripweave/internal/nudge"
	"tripweave/internal/overlap"
	"tripweave/internal/window"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "init":
		err = cmdlog.Run(logger, cmd, cmdInit)
	case "normalize":
		err = cmdlog.Run(logger, cmd, cmdNormalize)
	case "bestrange":
		err = cmdlog.Run(logger, cmd, cmdBestRange)
	case "classify":
		err = cmdlog.Run(logger, cmd, cmdClassify)
	case "nudges":
		err = cmdlog.Run(logger, cmd, func() error { return cmdNudges(logger) })
	case "monitor":
		err = cmdlog.Run(logger, cmd, func() error { return cmdMonitor(logger) })
	case "prune":
		err = cmdlog.Run(logger, cmd, func() error { return cmdPrune(logger) })
	default:
		printHelp()
	}
	if err != nil {
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage: tripweave <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./tripweave.yaml")
	fmt.Println("  normalize   Parse a free-text date suggestion")
	fmt.Println("  bestrange   Find the best overlap range in a trip fixture")
	fmt.Println("  classify    Classify a trip fixture's funnel state")
	fmt.Println("  nudges      Compute eligible nudges for a viewer")
	fmt.Println("  monitor     Show hourly ledger activity for a trip")
	fmt.Println("  prune       Apply the shown-cache retention policy")
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./tripweave.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdNormalize() error {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	text := fs.String("text", "", "free-text date suggestion")
	year := fs.Int("year", time.Now().UTC().Year(), "trip year hint")
	_ = fs.Parse(os.Args[2:])
	w, err := window.Normalize(*text, window.Context{TripYear: *year})
	if err != nil {
		fmt.Println("rejected:", err)
		return nil
	}
	fmt.Printf("{\"start\":%q,\"end\":%q,\"precision\":%q}\n",
		w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"), w.Precision)
	return nil
}

func cmdBestRange() error {
	fs := flag.NewFlagSet("bestrange", flag.ExitOnError)
	path := fs.String("fixture", "", "trip fixture JSON")
	minDays := fs.Int("min", overlap.DefaultMinDays, "minimum range length")
	maxDays := fs.Int("max", overlap.DefaultMaxDays, "maximum range length")
	_ = fs.Parse(os.Args[2:])
	fx, err := loadFixture(*path)
	if err != nil {
		return err
	}
	best, ok := overlap.FindBestRange(fx.windows(), *minDays, *maxDays)
	if !ok {
		fmt.Println("no overlapping range found")
		return nil
	}
	fmt.Printf("%s to %s: %d travelers %v\n",
		best.Start.Format("2006-01-02"), best.End.Format("2006-01-02"), best.CoverageCount, best.UserIDs)
	return nil
}

func cmdClassify() error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	path := fs.String("fixture", "", "trip fixture JSON")
	_ = fs.Parse(os.Args[2:])
	fx, err := loadFixture(*path)
	if err != nil {
		return err
	}
	state := funnel.Classify(funnel.Input{
		Trip:          fx.trip(),
		Windows:       fx.windows(),
		Reactions:     fx.reactions(),
		TravelerCount: len(fx.Travelers),
	})
	fmt.Println(state)
	return nil
}

func cmdNudges(logger *zap.Logger) error {
	fs := flag.NewFlagSet("nudges", flag.ExitOnError)
	cfgPath := fs.String("config", "./tripweave.yaml", "config path")
	path := fs.String("fixture", "", "trip fixture JSON")
	viewerID := fs.String("viewer", "", "viewer user id")
	record := fs.Bool("record", false, "record eligible nudges as shown")
	_ = fs.Parse(os.Args[2:])

	fx, err := loadFixture(*path)
	if err != nil {
		return err
	}
	em, closeStore, err := openLedger(*cfgPath, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	trip := fx.trip()
	m := nudge.BuildMetrics(trip, fx.windows(), fx.reactions(), fx.Travelers, *viewerID)
	v := nudge.Viewer{UserID: *viewerID, Leader: trip != nil && trip.CreatedBy == *viewerID}
	res := nudge.ComputeNudges(trip, m, v)

	ctx := context.Background()
	now := time.Now().UTC()
	res = nudge.SelectEligible(ctx, em, tripID(trip), *viewerID, res, now)
	for _, n := range res.Nudges {
		c, _ := nudge.BuildCopy(n)
		fmt.Printf("[%s p%d] %s: %s\n", n.Type, n.Priority, c.Title, c.Body)
		if *record {
			rec := model.NudgeEventRecord{
				TripID: tripID(trip), UserID: *viewerID, DedupeKey: n.DedupeKey,
				NudgeType: n.Type, Status: model.NudgeShown, CreatedAt: now,
			}
			if err := em.RecordNudge(ctx, rec); err != nil {
				return err
			}
		}
	}
	if len(res.Nudges) == 0 {
		fmt.Println("no eligible nudges")
	}
	em.Flush()
	return nil
}

func cmdMonitor(logger *zap.Logger) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	cfgPath := fs.String("config", "./tripweave.yaml", "config path")
	tripID := fs.String("trip", "", "trip id")
	_ = fs.Parse(os.Args[2:])
	store, err := openStore(*cfgPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	events, err := store.EventsByTrip(context.Background(), *tripID)
	if err != nil {
		return err
	}
	buckets := analytics.HourlyActivity(events)
	for _, k := range analytics.SortedBucketKeys(buckets) {
		fmt.Printf("%s -> %v\n", k.Format("2006-01-02 15:00"), buckets[k])
	}
	return nil
}

func cmdPrune(logger *zap.Logger) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	cfgPath := fs.String("config", "./tripweave.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	em, closeStore, err := openLedger(*cfgPath, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	n, err := em.PruneShown(context.Background(), time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d shown records\n", n)
	return nil
}

func openStore(cfgPath string, logger *zap.Logger) (ledger.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	metrics.StartServer(cfg.Metrics.Addr)
	switch cfg.Database.Driver {
	case "postgres":
		return ledger.OpenPostgres(ledger.PostgresConfig{
			Host: cfg.Database.Host, Port: cfg.Database.Port,
			User: cfg.Database.User, Password: cfg.Database.Password,
			DBName: cfg.Database.DBName, SSLMode: cfg.Database.SSLMode,
		}, logger)
	case "memory":
		return ledger.NewMemoryStore(), nil
	default:
		return ledger.OpenSQLite(cfg.Database.Path)
	}
}

func openLedger(cfgPath string, logger *zap.Logger) (*ledger.Emitter, func(), error) {
	store, err := openStore(cfgPath, logger)
	if err != nil {
		return nil, nil, err
	}
	em := ledger.NewEmitter(store, logger)
	return em, func() { em.Flush(); _ = store.Close() }, nil
}

func tripID(trip *model.TripSnapshot) string {
	if trip == nil {
		return ""
	}
	return trip.ID
}

// Fixture JSON types, converted into model values at the boundary.

type fixture struct {
	Trip *struct {
		ID            string `json:"id"`
		Type          string `json:"type"`
		Status        string `json:"status"`
		LockedStart   string `json:"lockedStart"`
		LockedEnd     string `json:"lockedEnd"`
		DatesLocked   bool   `json:"datesLocked"`
		CreatedBy     string `json:"createdBy"`
		TravelerCount int    `json:"travelerCount"`
	} `json:"trip"`
	Windows []struct {
		ID         string `json:"id"`
		ProposerID string `json:"proposerId"`
		Start      string `json:"start"`
		End        string `json:"end"`
		Precision  string `json:"precision"`
		IsProposed bool   `json:"isProposed"`
		Archived   bool   `json:"archived"`
	} `json:"windows"`
	Reactions []struct {
		UserID   string `json:"userId"`
		WindowID string `json:"windowId"`
		Type     string `json:"type"`
	} `json:"reactions"`
	Travelers []string `json:"travelers"`
}

func loadFixture(path string) (*fixture, error) {
	if path == "" {
		return nil, fmt.Errorf("missing -fixture path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx fixture
	if err := json.Unmarshal(b, &fx); err != nil {
		return nil, fmt.Errorf("bad fixture %s: %w", path, err)
	}
	return &fx, nil
}

func (fx *fixture) trip() *model.TripSnapshot {
	if fx.Trip == nil {
		return nil
	}
	return &model.TripSnapshot{
		ID:            fx.Trip.ID,
		Type:          model.TripType(fx.Trip.Type),
		Status:        fx.Trip.Status,
		LockedStart:   parseDay(fx.Trip.LockedStart),
		LockedEnd:     parseDay(fx.Trip.LockedEnd),
		DatesLocked:   fx.Trip.DatesLocked,
		CreatedBy:     fx.Trip.CreatedBy,
		TravelerCount: fx.Trip.TravelerCount,
	}
}

func (fx *fixture) windows() []model.DateWindow {
	out := make([]model.DateWindow, 0, len(fx.Windows))
	for _, w := range fx.Windows {
		precision := model.Precision(w.Precision)
		if precision == "" {
			precision = model.PrecisionExact
		}
		out = append(out, model.DateWindow{
			ID: w.ID, ProposerID: w.ProposerID,
			Start: parseDay(w.Start), End: parseDay(w.End),
			Precision: precision, IsProposed: w.IsProposed, Archived: w.Archived,
		})
	}
	return out
}

func (fx *fixture) reactions() []model.DateReaction {
	out := make([]model.DateReaction, 0, len(fx.Reactions))
	for _, r := range fx.Reactions {
		out = append(out, model.DateReaction{
			UserID: r.UserID, WindowID: r.WindowID, Type: model.ReactionType(r.Type),
		})
	}
	return out
}

func parseDay(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
