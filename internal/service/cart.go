package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/pricing"
)

// Errors returned by the cart service.
var (
	ErrCartNotFound       = errors.New("no active cart")
	ErrCartItemNotFound   = errors.New("cart item not found")
	ErrNotTopLevelItem    = errors.New("addon lines follow their parent item")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrRestaurantClosed   = errors.New("restaurant is not accepting orders")
	ErrAddressNotFound    = errors.New("address not found")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrItemUnavailable    = errors.New("item is not available")
	ErrAddonUnavailable   = errors.New("addon is not available")
	ErrNotCartOwner       = errors.New("cart belongs to another customer")
)

// CartStore defines the DB methods needed to mutate carts.
// Satisfied by *database.Queries (and its WithTx variant).
type CartStore interface {
	pricing.Store
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetAddress(ctx context.Context, id uuid.UUID) (database.Address, error)
	GetActiveCart(ctx context.Context, arg database.ActiveCartParams) (database.Cart, error)
	GetActiveCartForUpdate(ctx context.Context, arg database.ActiveCartParams) (database.Cart, error)
	GetCartForUpdate(ctx context.Context, id uuid.UUID) (database.Cart, error)
	CreateCart(ctx context.Context, arg database.ActiveCartParams) (database.Cart, error)
	SetCartAddress(ctx context.Context, arg database.SetCartAddressParams) (database.Cart, error)
	UpdateCartTotals(ctx context.Context, arg database.UpdateCartTotalsParams) (database.Cart, error)
	GetCartItem(ctx context.Context, id uuid.UUID) (database.CartItem, error)
	ListActiveCartItems(ctx context.Context, cartID uuid.UUID) ([]database.CartItem, error)
	CreateCartItem(ctx context.Context, arg database.CreateCartItemParams) (database.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error)
	UpdateCartItemNotes(ctx context.Context, arg database.UpdateCartItemNotesParams) (database.CartItem, error)
	RemoveCartItemTree(ctx context.Context, id uuid.UUID) error
	RemoveAllCartItems(ctx context.Context, cartID uuid.UUID) error
}

// NewCartStore creates a CartStore from a DBTX (pool or tx).
type NewCartStore func(db database.DBTX) CartStore

// CartScope identifies one cart slot: a customer holds at most one
// ACTIVE cart per (restaurant, promotional) pair.
type CartScope struct {
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Promotional  bool
}

// AddItemRequest is the validated input for adding a line to a cart.
type AddItemRequest struct {
	Scope    CartScope
	ItemType database.ItemType // PRODUCT or COMBO
	ItemID   uuid.UUID
	Quantity int32
	Notes    string
	AddonIDs []uuid.UUID
}

// CartLine is a top-level cart item with its addon children.
type CartLine struct {
	Item   database.CartItem
	Addons []database.CartItem
}

// CartView is a cart with its active lines grouped by parent.
type CartView struct {
	Cart  database.Cart
	Items []CartLine
}

// CartService handles cart business logic.
type CartService struct {
	pool     TxBeginner
	store    CartStore
	newStore NewCartStore
	now      func() time.Time
}

// NewCartService creates a new CartService. store is the pool-backed
// store used for plain reads; newStore builds tx-scoped stores.
func NewCartService(pool TxBeginner, store CartStore, newStore NewCartStore) *CartService {
	return &CartService{pool: pool, store: store, newStore: newStore, now: time.Now}
}

// GetCart returns the customer's active cart for the scope.
func (s *CartService) GetCart(ctx context.Context, scope CartScope) (*CartView, error) {
	cart, err := s.store.GetActiveCart(ctx, database.ActiveCartParams(scope))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get active cart: %w", err)
	}
	return buildCartView(ctx, s.store, cart)
}

// AddItem adds a product or combo line (with optional addons) to the
// scope's active cart, creating the cart if none exists. Adding the same
// item with the same addon set merges into the existing line.
func (s *CartService) AddItem(ctx context.Context, req AddItemRequest) (*CartView, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if req.ItemType != database.ItemTypePRODUCT && req.ItemType != database.ItemTypeCOMBO {
		return nil, ErrItemUnavailable
	}
	if req.ItemType == database.ItemTypeCOMBO && len(req.AddonIDs) > 0 {
		return nil, ErrAddonUnavailable
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Validate restaurant ---
	restaurant, err := store.GetRestaurant(ctx, req.Scope.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	if !restaurant.Active {
		return nil, ErrRestaurantClosed
	}

	// --- Locate or create the cart, locked ---
	cart, err := s.lockOrCreateCart(ctx, store, req.Scope)
	if err != nil {
		return nil, err
	}

	// --- Resolve prices ---
	resolver := pricing.NewResolver(store)
	now := s.now()

	var unitPrice decimal.Decimal
	switch req.ItemType {
	case database.ItemTypePRODUCT:
		unitPrice, err = resolver.ProductPrice(ctx, req.ItemID, cart.Promotional, now)
	case database.ItemTypeCOMBO:
		unitPrice, err = resolver.ComboPrice(ctx, req.ItemID)
	}
	if err != nil {
		return nil, err
	}
	if unitPrice.IsZero() {
		return nil, ErrItemUnavailable
	}

	addonPrices := make(map[uuid.UUID]decimal.Decimal, len(req.AddonIDs))
	for _, addonID := range req.AddonIDs {
		p, err := resolver.AddonPrice(ctx, addonID)
		if err != nil {
			return nil, err
		}
		if p.IsZero() {
			return nil, fmt.Errorf("%w: %s", ErrAddonUnavailable, addonID)
		}
		addonPrices[addonID] = p
	}

	items, err := store.ListActiveCartItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	// --- Merge into an existing line if identity matches ---
	if existing, ok := findMergeTarget(items, req); ok {
		if err := s.growLine(ctx, store, items, existing, req.Quantity); err != nil {
			return nil, err
		}
	} else {
		qty := decimal.NewFromInt32(req.Quantity)
		parent, err := store.CreateCartItem(ctx, database.CreateCartItemParams{
			CartID:     cart.ID,
			ItemType:   req.ItemType,
			ProductID:  itemRef(req.ItemType == database.ItemTypePRODUCT, req.ItemID),
			ComboID:    itemRef(req.ItemType == database.ItemTypeCOMBO, req.ItemID),
			Quantity:   req.Quantity,
			UnitPrice:  decimalToNumeric(unitPrice),
			TotalPrice: decimalToNumeric(unitPrice.Mul(qty)),
			Notes:      textOrNull(req.Notes),
		})
		if err != nil {
			return nil, fmt.Errorf("create cart item: %w", err)
		}
		// Addon children mirror the parent quantity.
		for _, addonID := range req.AddonIDs {
			p := addonPrices[addonID]
			_, err := store.CreateCartItem(ctx, database.CreateCartItemParams{
				CartID:     cart.ID,
				ParentID:   uuidToPg(parent.ID),
				ItemType:   database.ItemTypeADDON,
				AddonID:    uuidToPg(addonID),
				Quantity:   req.Quantity,
				UnitPrice:  decimalToNumeric(p),
				TotalPrice: decimalToNumeric(p.Mul(qty)),
			})
			if err != nil {
				return nil, fmt.Errorf("create addon item: %w", err)
			}
		}
	}

	cart, err = recomputeTotals(ctx, store, cart.ID)
	if err != nil {
		return nil, err
	}

	view, err := buildCartView(ctx, store, cart)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return view, nil
}

// UpdateItemQuantity changes a top-level line's quantity. Addon children
// follow the new quantity at their stored unit prices.
func (s *CartService) UpdateItemQuantity(ctx context.Context, customerID, itemID uuid.UUID, quantity int32) (*CartView, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cart, item, err := lockItemCart(ctx, store, customerID, itemID)
	if err != nil {
		return nil, err
	}

	items, err := store.ListActiveCartItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	if err := setLineQuantity(ctx, store, items, item, quantity); err != nil {
		return nil, err
	}

	cart, err = recomputeTotals(ctx, store, cart.ID)
	if err != nil {
		return nil, err
	}
	view, err := buildCartView(ctx, store, cart)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return view, nil
}

// UpdateItemNotes replaces the notes on a top-level line.
func (s *CartService) UpdateItemNotes(ctx context.Context, customerID, itemID uuid.UUID, notes string) (*CartView, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cart, item, err := lockItemCart(ctx, store, customerID, itemID)
	if err != nil {
		return nil, err
	}

	if _, err := store.UpdateCartItemNotes(ctx, database.UpdateCartItemNotesParams{
		ID:    item.ID,
		Notes: textOrNull(notes),
	}); err != nil {
		return nil, fmt.Errorf("update item notes: %w", err)
	}

	view, err := buildCartView(ctx, store, cart)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return view, nil
}

// RemoveItem removes a top-level line and its addon children.
func (s *CartService) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*CartView, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cart, item, err := lockItemCart(ctx, store, customerID, itemID)
	if err != nil {
		return nil, err
	}

	if err := store.RemoveCartItemTree(ctx, item.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("remove cart item: %w", err)
	}

	cart, err = recomputeTotals(ctx, store, cart.ID)
	if err != nil {
		return nil, err
	}
	view, err := buildCartView(ctx, store, cart)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return view, nil
}

// Clear removes every active line from the scope's cart.
func (s *CartService) Clear(ctx context.Context, scope CartScope) (*CartView, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cart, err := store.GetActiveCartForUpdate(ctx, database.ActiveCartParams(scope))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get active cart: %w", err)
	}

	if err := store.RemoveAllCartItems(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("remove cart items: %w", err)
	}

	cart, err = recomputeTotals(ctx, store, cart.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CartView{Cart: cart}, nil
}

// SetDeliveryAddress attaches one of the customer's saved addresses to
// the scope's cart ahead of conversion.
func (s *CartService) SetDeliveryAddress(ctx context.Context, scope CartScope, addressID uuid.UUID) (*CartView, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cart, err := store.GetActiveCartForUpdate(ctx, database.ActiveCartParams(scope))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get active cart: %w", err)
	}

	address, err := store.GetAddress(ctx, addressID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	// A foreign address reads as not found; ownership is not leaked.
	if address.UserID != scope.CustomerID {
		return nil, ErrAddressNotFound
	}

	cart, err = store.SetCartAddress(ctx, database.SetCartAddressParams{
		ID:        cart.ID,
		AddressID: uuidToPg(address.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("set cart address: %w", err)
	}

	view, err := buildCartView(ctx, store, cart)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return view, nil
}

// --- Internals ---

// lockOrCreateCart locks the scope's active cart, creating it when none
// exists. A concurrent create surfaces as a 23505 on the partial unique
// index; the loser re-reads the winner's row.
func (s *CartService) lockOrCreateCart(ctx context.Context, store CartStore, scope CartScope) (database.Cart, error) {
	cart, err := store.GetActiveCartForUpdate(ctx, database.ActiveCartParams(scope))
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Cart{}, fmt.Errorf("get active cart: %w", err)
	}

	cart, err = store.CreateCart(ctx, database.ActiveCartParams(scope))
	if err == nil {
		return cart, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		cart, err = store.GetActiveCartForUpdate(ctx, database.ActiveCartParams(scope))
		if err != nil {
			return database.Cart{}, fmt.Errorf("reread active cart: %w", err)
		}
		return cart, nil
	}
	return database.Cart{}, fmt.Errorf("create cart: %w", err)
}

// lockItemCart resolves an item to its cart, locks the cart row, and
// verifies ownership and that the item is an active top-level line.
func lockItemCart(ctx context.Context, store CartStore, customerID, itemID uuid.UUID) (database.Cart, database.CartItem, error) {
	item, err := store.GetCartItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Cart{}, database.CartItem{}, ErrCartItemNotFound
		}
		return database.Cart{}, database.CartItem{}, fmt.Errorf("get cart item: %w", err)
	}
	if item.Status != database.CartItemStatusACTIVE {
		return database.Cart{}, database.CartItem{}, ErrCartItemNotFound
	}
	if item.ParentID.Valid {
		return database.Cart{}, database.CartItem{}, ErrNotTopLevelItem
	}

	cart, err := store.GetCartForUpdate(ctx, item.CartID)
	if err != nil {
		return database.Cart{}, database.CartItem{}, fmt.Errorf("get cart: %w", err)
	}
	if cart.CustomerID != customerID {
		return database.Cart{}, database.CartItem{}, ErrNotCartOwner
	}
	if cart.Status != database.CartStatusACTIVE {
		return database.Cart{}, database.CartItem{}, ErrCartNotFound
	}
	return cart, item, nil
}

// findMergeTarget returns the active top-level line matching the request's
// item identity and addon-ID set, if one exists.
func findMergeTarget(items []database.CartItem, req AddItemRequest) (database.CartItem, bool) {
	want := addonKey(req.AddonIDs)
	for _, item := range items {
		if item.ParentID.Valid || item.ItemType != req.ItemType {
			continue
		}
		switch req.ItemType {
		case database.ItemTypePRODUCT:
			if !item.ProductID.Valid || item.ProductID.Bytes != req.ItemID {
				continue
			}
		case database.ItemTypeCOMBO:
			if !item.ComboID.Valid || item.ComboID.Bytes != req.ItemID {
				continue
			}
		}
		if addonKey(childAddonIDs(items, item.ID)) == want {
			return item, true
		}
	}
	return database.CartItem{}, false
}

func childAddonIDs(items []database.CartItem, parentID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, item := range items {
		if item.ParentID.Valid && item.ParentID.Bytes == parentID && item.AddonID.Valid {
			ids = append(ids, item.AddonID.Bytes)
		}
	}
	return ids
}

// addonKey builds an order-independent identity for an addon set.
func addonKey(ids []uuid.UUID) string {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	sort.Strings(ss)
	key := ""
	for _, s := range ss {
		key += s + ","
	}
	return key
}

// growLine merges an add into an existing line by incrementing quantity.
func (s *CartService) growLine(ctx context.Context, store CartStore, items []database.CartItem, line database.CartItem, add int32) error {
	return setLineQuantity(ctx, store, items, line, line.Quantity+add)
}

// setLineQuantity sets a line's quantity and repropagates it to addon
// children using each row's stored unit price.
func setLineQuantity(ctx context.Context, store CartStore, items []database.CartItem, line database.CartItem, quantity int32) error {
	qty := decimal.NewFromInt32(quantity)
	unit := numericToDecimal(line.UnitPrice)
	if _, err := store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
		ID:         line.ID,
		Quantity:   quantity,
		TotalPrice: decimalToNumeric(unit.Mul(qty)),
	}); err != nil {
		return fmt.Errorf("update item quantity: %w", err)
	}
	for _, child := range items {
		if !child.ParentID.Valid || child.ParentID.Bytes != line.ID {
			continue
		}
		childUnit := numericToDecimal(child.UnitPrice)
		if _, err := store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
			ID:         child.ID,
			Quantity:   quantity,
			TotalPrice: decimalToNumeric(childUnit.Mul(qty)),
		}); err != nil {
			return fmt.Errorf("update addon quantity: %w", err)
		}
	}
	return nil
}

// recomputeTotals rebuilds the cart's denormalized totals from its
// active lines: total_amount sums every row (addons included),
// total_items counts top-level quantities only.
func recomputeTotals(ctx context.Context, store CartStore, cartID uuid.UUID) (database.Cart, error) {
	items, err := store.ListActiveCartItems(ctx, cartID)
	if err != nil {
		return database.Cart{}, fmt.Errorf("list cart items: %w", err)
	}
	totalAmount := decimal.Zero
	var totalItems int32
	for _, item := range items {
		totalAmount = totalAmount.Add(numericToDecimal(item.TotalPrice))
		if !item.ParentID.Valid {
			totalItems += item.Quantity
		}
	}
	cart, err := store.UpdateCartTotals(ctx, database.UpdateCartTotalsParams{
		ID:          cartID,
		TotalAmount: decimalToNumeric(totalAmount),
		TotalItems:  totalItems,
	})
	if err != nil {
		return database.Cart{}, fmt.Errorf("update cart totals: %w", err)
	}
	return cart, nil
}

func buildCartView(ctx context.Context, store CartStore, cart database.Cart) (*CartView, error) {
	items, err := store.ListActiveCartItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	var lines []CartLine
	for _, item := range items {
		if item.ParentID.Valid {
			continue
		}
		line := CartLine{Item: item}
		for _, child := range items {
			if child.ParentID.Valid && child.ParentID.Bytes == item.ID {
				line.Addons = append(line.Addons, child)
			}
		}
		lines = append(lines, line)
	}
	return &CartView{Cart: cart, Items: lines}, nil
}

func itemRef(ok bool, id uuid.UUID) pgtype.UUID {
	if !ok {
		return pgtype.UUID{}
	}
	return uuidToPg(id)
}
