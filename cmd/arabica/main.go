package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arabica-erp/arabica-erp/internal/app"
	"github.com/arabica-erp/arabica-erp/internal/inventory"
	"github.com/arabica-erp/arabica-erp/internal/masterdata/lots"
	"github.com/arabica-erp/arabica-erp/internal/masterdata/warehouses"
	"github.com/arabica-erp/arabica-erp/internal/platform/cache"
	"github.com/arabica-erp/arabica-erp/internal/platform/db"
	"github.com/arabica-erp/arabica-erp/internal/platform/docstore"
	"github.com/arabica-erp/arabica-erp/internal/shared"
)

const usage = `usage: arabica <command> [flags]

commands:
    post       record a stock movement
    kardex     export a stock key's movement history as CSV
    valuation  print inventory value grouped by product kind
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := docstore.NewPostgres(pool)
	ledger := inventory.NewLedger(store)
	lotService := lots.NewService(lots.NewRepository(store), logger)
	warehouseService := warehouses.NewService(warehouses.NewRepository(store))
	allocator := inventory.NewAllocator(lotService, ledger, nil)
	engine := inventory.NewEngine(ledger, lotService, allocator, warehouseService,
		shared.NewKeyMutex(), shared.NewIdempotencyStore(store), shared.NewAuditLogger(store),
		logger, inventory.EngineConfig{CASMaxRetries: cfg.CASMaxRetries})

	switch os.Args[1] {
	case "post":
		err = runPost(ctx, engine, os.Args[2:])
	case "kardex":
		err = runKardex(ctx, inventory.NewKardex(ledger), os.Args[2:])
	case "valuation":
		err = runValuation(ctx, cfg, logger, ledger, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(os.Args[1], slog.Any("error", err))
		os.Exit(1)
	}
}

func stockKeyFlags(fs *flag.FlagSet) (product, productKind, lot, warehouse, location *string) {
	product = fs.String("product", "", "product reference")
	productKind = fs.String("product-kind", string(lots.KindRawMaterial), "RAW_MATERIAL or FINISHED_GOOD")
	lot = fs.String("lot", "", "lot reference")
	warehouse = fs.String("warehouse", "", "warehouse id")
	location = fs.String("location", "", "location id")
	return
}

func runPost(ctx context.Context, engine *inventory.Engine, args []string) error {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	kind := fs.String("kind", "", "RECEIPT, ISSUE, ADJUST_POS or ADJUST_NEG")
	product, productKind, lot, warehouse, location := stockKeyFlags(fs)
	qty := fs.String("qty", "", "movement quantity")
	cost := fs.String("cost", "0", "unit cost for inbound movements")
	method := fs.String("method", "", "costing method for a new ledger entry")
	corr := fs.String("corr", "", "correlation id for idempotent retries")
	note := fs.String("note", "", "free-form note")
	if err := fs.Parse(args); err != nil {
		return err
	}

	quantity, err := decimal.NewFromString(*qty)
	if err != nil {
		return fmt.Errorf("parse qty: %w", err)
	}
	unitCost, err := decimal.NewFromString(*cost)
	if err != nil {
		return fmt.Errorf("parse cost: %w", err)
	}

	input := inventory.MovementInput{
		Kind:          inventory.MovementKind(*kind),
		ProductRef:    *product,
		ProductKind:   lots.ProductKind(*productKind),
		Quantity:      quantity,
		UnitCost:      unitCost,
		LotRef:        *lot,
		CostingMethod: inventory.CostingMethod(*method),
		CorrelationID: *corr,
		Note:          *note,
	}
	if input.Kind.Inbound() {
		input.WarehouseTo, input.LocationTo = *warehouse, *location
	} else {
		input.WarehouseFrom, input.LocationFrom = *warehouse, *location
	}

	rec, err := engine.RecordMovement(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s qty=%s unit_cost=%s balance=%s\n",
		rec.ID, rec.Kind, rec.Quantity, rec.UnitCost, rec.BalanceQuantity)
	return nil
}

func runKardex(ctx context.Context, kardex *inventory.Kardex, args []string) error {
	fs := flag.NewFlagSet("kardex", flag.ExitOnError)
	product, productKind, lot, warehouse, location := stockKeyFlags(fs)
	fromFlag := fs.String("from", "", "window start (RFC 3339)")
	toFlag := fs.String("to", "", "window end (RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var from, to time.Time
	var err error
	if *fromFlag != "" {
		if from, err = time.Parse(time.RFC3339, *fromFlag); err != nil {
			return fmt.Errorf("parse from: %w", err)
		}
	}
	if *toFlag != "" {
		if to, err = time.Parse(time.RFC3339, *toFlag); err != nil {
			return fmt.Errorf("parse to: %w", err)
		}
	}

	key := inventory.StockKey{
		ProductRef:   *product,
		ProductKind:  lots.ProductKind(*productKind),
		LotRef:       *lot,
		WarehouseRef: *warehouse,
		LocationRef:  *location,
	}
	return kardex.WriteCSV(ctx, os.Stdout, key, from, to)
}

func runValuation(ctx context.Context, cfg *app.Config, logger *slog.Logger, ledger inventory.Ledger, args []string) error {
	fs := flag.NewFlagSet("valuation", flag.ExitOnError)
	fresh := fs.Bool("fresh", false, "bypass the cached snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var jsonCache *cache.JSONCache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, computing uncached", slog.Any("error", err))
	} else {
		defer redisClient.Close()
		jsonCache = cache.NewJSONCache(redisClient, cfg.ValuationCacheTTL)
	}

	valuator := inventory.NewValuator(ledger, jsonCache)
	if *fresh {
		if err := valuator.Invalidate(ctx); err != nil {
			return err
		}
	}
	totals, err := valuator.Valuation(ctx)
	if err != nil {
		return err
	}
	for _, kind := range []lots.ProductKind{lots.KindRawMaterial, lots.KindFinishedGood} {
		fmt.Printf("%-15s %s\n", kind, totals[kind])
	}
	return nil
}
