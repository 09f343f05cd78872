package main

import (
	"context"
	"fmt"
	"time"

	kitlog "github.com/go-kit/log"
	jsoniter "github.com/json-iterator/go"

	"github.com/leapunion/visibility/cmd/visibility/app"
	"github.com/leapunion/visibility/modules/cost"
	"github.com/leapunion/visibility/modules/limiter"
	"github.com/leapunion/visibility/pkg/model"
	"github.com/leapunion/visibility/visdb/coord"
	"github.com/leapunion/visibility/visdb/document"
	"github.com/leapunion/visibility/visdb/relational"
	"github.com/leapunion/visibility/visdb/timeseries"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type initSchemaCmd struct{}

func (cmd *initSchemaCmd) Run(cfg *app.Config, logger kitlog.Logger) error {
	ctx := context.Background()

	rel, err := relational.New(ctx, &cfg.Relational, logger)
	if err != nil {
		return err
	}
	defer rel.Close()
	if err := rel.InitSchema(ctx); err != nil {
		return err
	}
	fmt.Println("relational schema applied")

	ts, err := timeseries.New(ctx, &cfg.Timeseries, logger)
	if err != nil {
		return err
	}
	defer ts.Close()
	if err := ts.InitSchema(ctx); err != nil {
		return err
	}
	fmt.Println("timeseries schema applied")

	docs, err := document.New(ctx, &cfg.Document, logger)
	if err != nil {
		return err
	}
	defer docs.Close(ctx)
	if err := docs.EnsureIndexes(ctx); err != nil {
		return err
	}
	fmt.Println("document indexes created")

	return nil
}

type seedCmd struct{}

var seedBrands = []string{"Levoit", "Dyson", "Coway", "Honeywell"}

var seedQueries = []model.Query{
	{QueryText: "best air purifier 2025", Category: model.CategoryProductComparison, Priority: model.PriorityHigh},
	{QueryText: "levoit vs dyson air purifier", Category: model.CategoryProductComparison, Priority: model.PriorityHigh},
	{QueryText: "top rated HEPA air purifiers", Category: model.CategoryProductComparison, Priority: model.PriorityMedium},
	{QueryText: "is levoit a good brand", Category: model.CategoryBrandSearch, Priority: model.PriorityHigh},
	{QueryText: "levoit core 300s review", Category: model.CategoryBrandSearch, Priority: model.PriorityMedium},
	{QueryText: "air purifier for allergies", Category: model.CategoryCategorySearch, Priority: model.PriorityMedium},
	{QueryText: "air purifier for pet owners", Category: model.CategoryCategorySearch, Priority: model.PriorityLow},
	{QueryText: "small room air purifier", Category: model.CategoryCategorySearch, Priority: model.PriorityLow},
	{QueryText: "do air purifiers really work", Category: model.CategoryGeneral, Priority: model.PriorityLow},
	{QueryText: "how to choose an air purifier", Category: model.CategoryGeneral, Priority: model.PriorityLow},
}

func (cmd *seedCmd) Run(cfg *app.Config, logger kitlog.Logger) error {
	ctx := context.Background()

	rel, err := relational.New(ctx, &cfg.Relational, logger)
	if err != nil {
		return err
	}
	defer rel.Close()

	for _, q := range seedQueries {
		q.Brands = seedBrands
		q.IsActive = true
		if _, err := rel.InsertQuery(ctx, q); err != nil {
			return err
		}
	}
	fmt.Printf("seeded %d queries\n", len(seedQueries))

	for _, brand := range seedBrands {
		if _, err := rel.InsertBrand(ctx, brand, brand == "Levoit"); err != nil {
			return err
		}
	}
	fmt.Printf("seeded %d brands\n", len(seedBrands))

	return nil
}

type costShowCmd struct{}

func (cmd *costShowCmd) Run(cfg *app.Config, logger kitlog.Logger) error {
	store, err := coord.New(&cfg.Coordination, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	tracker := cost.New(&cfg.Cost, store, logger)

	today, err := tracker.Today(ctx)
	if err != nil {
		return err
	}
	remaining, err := tracker.RemainingBudget(ctx)
	if err != nil {
		return err
	}
	exceeded, err := tracker.IsBudgetExceeded(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("date      : %s\n", time.Now().UTC().Format("2006-01-02"))
	fmt.Printf("spent     : $%.4f\n", today)
	fmt.Printf("budget    : $%.2f\n", cfg.Cost.DailyBudgetUSD)
	fmt.Printf("remaining : $%.4f\n", remaining)
	fmt.Printf("exceeded  : %t\n", exceeded)
	return nil
}

type costResetCmd struct{}

func (cmd *costResetCmd) Run(cfg *app.Config, logger kitlog.Logger) error {
	store, err := coord.New(&cfg.Coordination, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := cost.New(&cfg.Cost, store, logger)
	if err := tracker.ResetToday(context.Background()); err != nil {
		return err
	}
	fmt.Println("today's cost counter cleared")
	return nil
}

type limiterRemainingCmd struct{}

func (cmd *limiterRemainingCmd) Run(cfg *app.Config, logger kitlog.Logger) error {
	store, err := coord.New(&cfg.Coordination, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	rl := limiter.New(&cfg.RateLimits, store, logger)

	for _, p := range model.AllPlatforms() {
		remaining, err := rl.Remaining(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s %d/%d\n", p, remaining, rl.Limit(p))
	}
	return nil
}

type limiterResetCmd struct {
	Platform string `arg:"" help:"Platform to reset: chatgpt, perplexity, or google_ai."`
}

func (cmd *limiterResetCmd) Run(cfg *app.Config, logger kitlog.Logger) error {
	platform := model.Platform(cmd.Platform)
	known := false
	for _, p := range model.AllPlatforms() {
		if p == platform {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown platform %q", cmd.Platform)
	}

	store, err := coord.New(&cfg.Coordination, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rl := limiter.New(&cfg.RateLimits, store, logger)
	if err := rl.Reset(context.Background(), platform); err != nil {
		return err
	}
	fmt.Printf("rate-limit window cleared for %s\n", platform)
	return nil
}

type snapshotGetCmd struct {
	ID string `arg:"" help:"Snapshot id (hex)."`
}

func (cmd *snapshotGetCmd) Run(cfg *app.Config, logger kitlog.Logger) error {
	ctx := context.Background()

	docs, err := document.New(ctx, &cfg.Document, logger)
	if err != nil {
		return err
	}
	defer docs.Close(ctx)

	snap, err := docs.GetSnapshot(ctx, cmd.ID)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
