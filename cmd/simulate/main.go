package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tharunsai190/classy-commerce-storefront/internal/config"
	"github.com/tharunsai190/classy-commerce-storefront/internal/database"
	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
	"github.com/tharunsai190/classy-commerce-storefront/internal/repo"
	"github.com/tharunsai190/classy-commerce-storefront/internal/service"
)

// simulate fires concurrent checkouts at one product and reports how many
// won stock. With -stock 5 -buyers 10 exactly five orders must succeed.
func main() {
	stock := flag.Int("stock", 5, "initial stock of the contested product")
	buyers := flag.Int("buyers", 10, "number of concurrent checkouts")
	quantity := flag.Int("quantity", 1, "units per checkout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	if err := database.Migrate(cfg.DB.DSN()); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := database.NewPostgres(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	dbService := database.New(pool, cfg.DB.Database)
	defer dbService.Close()
	if stats := dbService.Health(ctx); stats["status"] != "up" {
		log.Fatalf("database unhealthy: %s", stats["error"])
	}
	db := dbService.DB()

	catalogRepo := repo.NewCatalogRepo(db)
	inventoryRepo := repo.NewInventoryRepo(db)
	orderService := service.NewOrderService(db, catalogRepo, inventoryRepo, repo.NewOrderRepo(db), repo.NewOutboxRepo(db),
		zap.NewNop(), service.Options{MaxAttempts: cfg.OrderMaxAttempts, Topic: cfg.KafkaTopic})

	product := domain.Product{
		ID:    "sim-" + uuid.NewString()[:8],
		Name:  "Limited Edition Jacket",
		Price: decimal.RequireFromString("50.00"),
		Stock: *stock,
	}
	if err := catalogRepo.UpsertProduct(ctx, &product); err != nil {
		log.Fatalf("seed product: %v", err)
	}

	fmt.Printf("--- %d BUYERS x %d UNIT(S) AGAINST STOCK %d (%s) ---\n", *buyers, *quantity, *stock, product.ID)

	var placed, soldOut, failed atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *buyers; i++ {
		g.Go(func() error {
			order, err := orderService.PlaceOrder(gctx, domain.PlaceOrderRequest{
				UserID: fmt.Sprintf("sim-user-%02d", i+1),
				Lines:  []domain.CartLine{{ProductID: product.ID, Quantity: *quantity}},
				ShippingAddress: domain.Address{
					Name: "Sim Buyer", Street: "1 Test Lane", City: "Springfield",
					State: "IL", PostalCode: "62701", Country: "US",
				},
				PaymentMethod: domain.PaymentCOD,
			})
			switch {
			case err == nil:
				placed.Add(1)
				fmt.Printf("[%02d] PLACED   %s total=%s\n", i+1, order.ID, order.TotalAmount.StringFixed(2))
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOut.Add(1)
				fmt.Printf("[%02d] SOLD OUT %v\n", i+1, err)
			default:
				failed.Add(1)
				fmt.Printf("[%02d] FAILED   %v\n", i+1, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	remaining, err := inventoryRepo.Stock(ctx, product.ID)
	if err != nil {
		log.Fatalf("read stock: %v", err)
	}

	fmt.Println("---------------------------------------------------")
	fmt.Printf("placed=%d sold_out=%d failed=%d remaining_stock=%d elapsed=%s\n",
		placed.Load(), soldOut.Load(), failed.Load(), remaining, time.Since(start).Round(time.Millisecond))

	if sold := int(placed.Load()) * *quantity; sold+remaining != *stock {
		log.Fatalf("stock mismatch: sold %d + remaining %d != initial %d", sold, remaining, *stock)
	}
}
