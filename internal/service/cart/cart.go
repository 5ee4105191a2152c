package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/optiview/eyewear-shop/internal/cache"
	"github.com/optiview/eyewear-shop/internal/logging"
	"github.com/optiview/eyewear-shop/internal/models"
	"github.com/optiview/eyewear-shop/internal/repo"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
)

const cacheTTL = 24 * time.Hour

// cachedLine is the reduced projection kept in the cache: line identity
// and quantity only. Prices and names are looked up fresh on every read
// because lens and product prices can change under a live cart.
type cachedLine struct {
	ProductID uuid.UUID  `json:"product_id"`
	LensID    *uuid.UUID `json:"lens_id,omitempty"`
	Quantity  uint       `json:"quantity"`
}

// Item is one enriched cart line as returned to callers.
type Item struct {
	ProductID   uuid.UUID  `json:"product_id"`
	ProductName string     `json:"product_name"`
	UnitPrice   float64    `json:"unit_price"`
	LensID      *uuid.UUID `json:"lens_id,omitempty"`
	LensName    string     `json:"lens_name,omitempty"`
	LensPrice   *float64   `json:"lens_price,omitempty"`
	Quantity    uint       `json:"quantity"`
	LineTotal   float64    `json:"line_total"`
}

type Cart struct {
	Items    []Item  `json:"items"`
	Subtotal float64 `json:"subtotal"`
}

// Service is the dual-tier cart store: Redis in front, Postgres behind.
// The cache is advisory; when it is down or cold every operation falls
// through to the durable store and repopulates on the way out.
type Service struct {
	Repo  *repo.GormRepo
	Cache cache.Cache
}

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("cart:%s", userID)
}

// Get returns the enriched cart. Reads consult the cache first and
// rebuild it from the durable store on a miss.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	lines, fromCache, err := s.readLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !fromCache {
		s.writeCache(ctx, userID, lines)
	}
	return s.enrich(ctx, lines)
}

// Add puts qty units of a product (with an optional lens choice) into
// the cart. Lines dedup on the (product, lens) pair: the same frame with
// a different lens is a distinct line.
func (s *Service) Add(ctx context.Context, userID, productID uuid.UUID, qty uint, lensID *uuid.UUID) (*Cart, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if qty == 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	products, err := s.Repo.GetProducts(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	if _, ok := products[productID]; !ok {
		return nil, fmt.Errorf("%w: product", ErrNotFound)
	}
	if lensID != nil {
		lenses, err := s.Repo.GetLenses(ctx, []uuid.UUID{*lensID})
		if err != nil {
			return nil, err
		}
		if _, ok := lenses[*lensID]; !ok {
			return nil, fmt.Errorf("%w: lens", ErrNotFound)
		}
	}

	items, err := s.Repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range items {
		if items[i].ProductID == productID && sameLens(items[i].LensID, lensID) {
			items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, models.CartItem{
			UserID:    userID,
			ProductID: productID,
			LensID:    lensID,
			Quantity:  qty,
		})
	}

	return s.store(ctx, userID, items)
}

// Update sets the quantity of the first line matching the product.
func (s *Service) Update(ctx context.Context, userID, productID uuid.UUID, qty uint) (*Cart, error) {
	if qty == 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	items, err := s.Repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = qty
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: cart item", ErrNotFound)
	}

	return s.store(ctx, userID, items)
}

// Remove drops every line of the product, whatever its configuration.
func (s *Service) Remove(ctx context.Context, userID, productID uuid.UUID) (*Cart, error) {
	items, err := s.Repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := items[:0]
	removed := false
	for _, it := range items {
		if it.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if !removed {
		return nil, fmt.Errorf("%w: cart item", ErrNotFound)
	}

	return s.store(ctx, userID, kept)
}

// GuestItem is one line carried over from an anonymous session.
type GuestItem struct {
	ProductID uuid.UUID  `json:"product_id"`
	LensID    *uuid.UUID `json:"lens_id,omitempty"`
	Quantity  uint       `json:"quantity"`
}

// Merge folds a guest cart into the user cart. Collisions are resolved
// by product id alone, summing quantities into the first existing line —
// coarser than Add's (product, lens) dedup, and intentionally so.
func (s *Service) Merge(ctx context.Context, userID uuid.UUID, guest []GuestItem) (*Cart, error) {
	items, err := s.Repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, g := range guest {
		if g.ProductID == uuid.Nil || g.Quantity == 0 {
			return nil, fmt.Errorf("%w: guest items need product_id and quantity > 0", ErrValidation)
		}
		merged := false
		for i := range items {
			if items[i].ProductID == g.ProductID {
				items[i].Quantity += g.Quantity
				merged = true
				break
			}
		}
		if !merged {
			items = append(items, models.CartItem{
				UserID:    userID,
				ProductID: g.ProductID,
				LensID:    g.LensID,
				Quantity:  g.Quantity,
			})
		}
	}

	return s.store(ctx, userID, items)
}

// Clear empties the cart and its cache entry.
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.Repo.DeleteCart(ctx, userID); err != nil {
		return err
	}
	s.dropCache(ctx, userID)
	return nil
}

// store persists the full line set durably, refreshes the cache, and
// returns the enriched cart.
func (s *Service) store(ctx context.Context, userID uuid.UUID, items []models.CartItem) (*Cart, error) {
	if err := s.Repo.ReplaceCartItems(ctx, userID, items); err != nil {
		return nil, err
	}
	s.writeCache(ctx, userID, toLines(items))
	return s.enrich(ctx, toLines(items))
}

func (s *Service) readLines(ctx context.Context, userID uuid.UUID) (lines []cachedLine, fromCache bool, err error) {
	if s.Cache != nil {
		raw, cerr := s.Cache.Get(ctx, cacheKey(userID))
		switch {
		case cerr == nil:
			if jerr := json.Unmarshal([]byte(raw), &lines); jerr == nil {
				return lines, true, nil
			}
			logging.FromContext(ctx).Warn("cart_cache_corrupt", "user_id", userID)
		case !errors.Is(cerr, cache.ErrMiss):
			logging.FromContext(ctx).Warn("cart_cache_read_error", "error", cerr)
		}
	}

	items, err := s.Repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return toLines(items), false, nil
}

func (s *Service) writeCache(ctx context.Context, userID uuid.UUID, lines []cachedLine) {
	if s.Cache == nil {
		return
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, cacheKey(userID), string(data), cacheTTL); err != nil {
		logging.FromContext(ctx).Warn("cart_cache_write_error", "error", err)
	}
}

func (s *Service) dropCache(ctx context.Context, userID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, cacheKey(userID)); err != nil {
		logging.FromContext(ctx).Warn("cart_cache_delete_error", "error", err)
	}
}

// enrich resolves current product and lens prices into the lines. Stored
// prices are never trusted; checkout re-resolves independently anyway.
func (s *Service) enrich(ctx context.Context, lines []cachedLine) (*Cart, error) {
	productIDs := make([]uuid.UUID, 0, len(lines))
	lensIDs := make([]uuid.UUID, 0)
	for _, l := range lines {
		productIDs = append(productIDs, l.ProductID)
		if l.LensID != nil {
			lensIDs = append(lensIDs, *l.LensID)
		}
	}

	products, err := s.Repo.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	lenses, err := s.Repo.GetLenses(ctx, lensIDs)
	if err != nil {
		return nil, err
	}

	cart := &Cart{Items: make([]Item, 0, len(lines))}
	subtotal := decimal.Zero
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			// Product removed from the catalog under a live cart.
			logging.FromContext(ctx).Warn("cart_line_orphaned", "product_id", l.ProductID)
			continue
		}

		item := Item{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.EffectivePrice(),
			LensID:      l.LensID,
			Quantity:    l.Quantity,
		}
		unit := decimal.NewFromFloat(p.EffectivePrice())
		if l.LensID != nil {
			if lens, ok := lenses[*l.LensID]; ok {
				price := lens.Price
				item.LensName = lens.Name
				item.LensPrice = &price
				unit = unit.Add(decimal.NewFromFloat(lens.Price))
			}
		}
		line := unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
		item.LineTotal, _ = line.Round(2).Float64()
		subtotal = subtotal.Add(line)
		cart.Items = append(cart.Items, item)
	}

	cart.Subtotal, _ = subtotal.Round(2).Float64()
	return cart, nil
}

func toLines(items []models.CartItem) []cachedLine {
	lines := make([]cachedLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, cachedLine{
			ProductID: it.ProductID,
			LensID:    it.LensID,
			Quantity:  it.Quantity,
		})
	}
	return lines
}

func sameLens(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
