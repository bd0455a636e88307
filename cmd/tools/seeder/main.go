package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Seeds a demo catalog with slab pricing, a running flash sale, and a few
// coupons so the quote pipeline has something to chew on locally.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	brandID := seedBrand(ctx, pool)
	categoryID := seedCategory(ctx, pool)
	productIDs := seedProducts(ctx, pool, brandID, categoryID)
	variantIDs := seedVariants(ctx, pool, productIDs)
	seedSlabs(ctx, pool, variantIDs)
	seedFlashSale(ctx, pool, productIDs)
	seedCoupons(ctx, pool, productIDs, categoryID, brandID)
	seedSettings(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedBrand(ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	log.Println("Seeding brand...")
	var id uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO brands (name) VALUES ('Nusantara Goods')
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed brand: %v", err)
	}
	return id
}

func seedCategory(ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	log.Println("Seeding category...")
	var id uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO categories (name) VALUES ('Kitchen')
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed category: %v", err)
	}
	return id
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, brandID, categoryID uuid.UUID) []uuid.UUID {
	products := []struct {
		Slug  string
		Title string
	}{
		{"bamboo-cutting-board", "Bamboo Cutting Board"},
		{"ceramic-mug-set", "Ceramic Mug Set"},
		{"stainless-mixing-bowl", "Stainless Mixing Bowl"},
	}

	log.Println("Seeding products...")
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		var id uuid.UUID
		err := pool.QueryRow(ctx, `
			INSERT INTO products (slug, title, brand_id) VALUES ($1, $2, $3)
			ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title
			RETURNING id`, p.Slug, p.Title, brandID).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Slug, err)
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, id, categoryID); err != nil {
			log.Fatalf("Failed to link product %s to category: %v", p.Slug, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func seedVariants(ctx context.Context, pool *pgxpool.Pool, productIDs []uuid.UUID) []uuid.UUID {
	variants := []struct {
		SKU         string
		BasePrice   string
		MOQOverride *int
	}{
		{"BRD-001", "120.00", nil},
		{"MUG-001", "45.50", intPtr(2)},
		{"BWL-001", "89.90", nil},
	}

	log.Println("Seeding variants...")
	ids := make([]uuid.UUID, 0, len(variants))
	for i, v := range variants {
		var id uuid.UUID
		err := pool.QueryRow(ctx, `
			INSERT INTO product_variants (product_id, sku, base_price, moq_override)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (sku) DO UPDATE SET base_price = EXCLUDED.base_price
			RETURNING id`, productIDs[i], v.SKU, v.BasePrice, v.MOQOverride).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed variant %s: %v", v.SKU, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func seedSlabs(ctx context.Context, pool *pgxpool.Pool, variantIDs []uuid.UUID) {
	slabs := []struct {
		Variant   int
		MinQty    int
		UnitPrice string
	}{
		{0, 5, "110.00"},
		{0, 10, "99.00"},
		{1, 6, "39.90"},
		{2, 4, "79.90"},
	}

	log.Println("Seeding pricing slabs...")
	for _, s := range slabs {
		if _, err := pool.Exec(ctx, `
			INSERT INTO pricing_slabs (variant_id, min_qty, unit_price)
			VALUES ($1, $2, $3)
			ON CONFLICT (variant_id, min_qty) DO UPDATE SET unit_price = EXCLUDED.unit_price`,
			variantIDs[s.Variant], s.MinQty, s.UnitPrice); err != nil {
			log.Fatalf("Failed to seed slab: %v", err)
		}
	}
}

func seedFlashSale(ctx context.Context, pool *pgxpool.Pool, productIDs []uuid.UUID) {
	log.Println("Seeding flash sale...")
	now := time.Now()
	var saleID uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO flash_sales (starts_at, ends_at, discount_pct, max_qty, active)
		VALUES ($1, $2, 25.00, 100, TRUE)
		RETURNING id`, now.Add(-time.Hour), now.Add(48*time.Hour)).Scan(&saleID)
	if err != nil {
		log.Fatalf("Failed to seed flash sale: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO flash_sale_products (flash_sale_id, product_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, saleID, productIDs[0]); err != nil {
		log.Fatalf("Failed to link flash sale product: %v", err)
	}
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, productIDs []uuid.UUID, categoryID, brandID uuid.UUID) {
	now := time.Now()
	coupons := []struct {
		Code        string
		Kind        string
		Value       string
		MinOrder    *string
		MaxUses     *int
		EndsAt      *time.Time
		ProductIDs  []uuid.UUID
		CategoryIDs []uuid.UUID
		BrandIDs    []uuid.UUID
	}{
		{"WELCOME10", "PERCENTAGE", "10.00", nil, nil, nil, nil, nil, nil},
		{"KITCHEN25", "FIXED_AMOUNT", "25.00", strPtr("200.00"), intPtr(500), timePtr(now.Add(30 * 24 * time.Hour)), nil, []uuid.UUID{categoryID}, nil},
		{"BOARDDEAL", "PERCENTAGE", "15.00", nil, intPtr(50), timePtr(now.Add(7 * 24 * time.Hour)), productIDs[:1], nil, nil},
	}

	log.Println("Seeding coupons...")
	for _, c := range coupons {
		if _, err := pool.Exec(ctx, `
			INSERT INTO coupons (code, kind, value, min_order_amount, max_uses, starts_at, ends_at, active,
			                     product_ids, category_ids, brand_ids)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9, $10)
			ON CONFLICT (code) DO UPDATE SET value = EXCLUDED.value, ends_at = EXCLUDED.ends_at`,
			c.Code, c.Kind, c.Value, c.MinOrder, c.MaxUses, now.Add(-time.Hour), c.EndsAt,
			uuidsOrEmpty(c.ProductIDs), uuidsOrEmpty(c.CategoryIDs), uuidsOrEmpty(c.BrandIDs)); err != nil {
			log.Fatalf("Failed to seed coupon %s: %v", c.Code, err)
		}
	}
}

func seedSettings(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding store settings...")
	if _, err := pool.Exec(ctx, `
		UPDATE store_settings
		SET moq_active = TRUE, moq_min_qty = 1, hide_prices_for_guests = FALSE,
		    free_shipping_threshold = 300.00, flat_shipping_fee = 15.00, updated_at = now()
		WHERE id = 1`); err != nil {
		log.Fatalf("Failed to seed settings: %v", err)
	}
}

func uuidsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }
