package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sofra-app/api/internal/database"
)

// fakeCartStore is an in-memory CartStore. It models just enough of the
// database for cart flows: one restaurant, one address, a catalog, one
// cart row, and its items.
type fakeCartStore struct {
	restaurant database.Restaurant
	address    database.Address
	products   map[uuid.UUID]database.Product
	combos     map[uuid.UUID]database.Combo
	addons     map[uuid.UUID]database.Addon

	cart  *database.Cart
	items []database.CartItem
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		restaurant: database.Restaurant{ID: uuid.New(), Name: "Test Kitchen", City: "Cairo", Active: true},
		products:   map[uuid.UUID]database.Product{},
		combos:     map[uuid.UUID]database.Combo{},
		addons:     map[uuid.UUID]database.Addon{},
	}
}

func (f *fakeCartStore) addProduct(price string) uuid.UUID {
	id := uuid.New()
	f.products[id] = database.Product{ID: id, RestaurantID: f.restaurant.ID, Name: "Product", SalePrice: makeNumeric(price), Active: true}
	return id
}

func (f *fakeCartStore) addAddon(price string) uuid.UUID {
	id := uuid.New()
	f.addons[id] = database.Addon{ID: id, RestaurantID: f.restaurant.ID, Name: "Addon", SalePrice: makeNumeric(price), Active: true}
	return id
}

// --- pricing.Store ---

func (f *fakeCartStore) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return database.Product{}, pgx.ErrNoRows
}
func (f *fakeCartStore) GetCombo(ctx context.Context, id uuid.UUID) (database.Combo, error) {
	if c, ok := f.combos[id]; ok {
		return c, nil
	}
	return database.Combo{}, pgx.ErrNoRows
}
func (f *fakeCartStore) GetAddon(ctx context.Context, id uuid.UUID) (database.Addon, error) {
	if a, ok := f.addons[id]; ok {
		return a, nil
	}
	return database.Addon{}, pgx.ErrNoRows
}
func (f *fakeCartStore) GetEffectiveOffer(ctx context.Context, arg database.GetEffectiveOfferParams) (database.Offer, error) {
	return database.Offer{}, pgx.ErrNoRows
}

// --- CartStore ---

func (f *fakeCartStore) GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error) {
	if id == f.restaurant.ID {
		return f.restaurant, nil
	}
	return database.Restaurant{}, pgx.ErrNoRows
}
func (f *fakeCartStore) GetAddress(ctx context.Context, id uuid.UUID) (database.Address, error) {
	if id == f.address.ID {
		return f.address, nil
	}
	return database.Address{}, pgx.ErrNoRows
}
func (f *fakeCartStore) GetActiveCart(ctx context.Context, arg database.ActiveCartParams) (database.Cart, error) {
	return f.activeCart(arg)
}
func (f *fakeCartStore) GetActiveCartForUpdate(ctx context.Context, arg database.ActiveCartParams) (database.Cart, error) {
	return f.activeCart(arg)
}
func (f *fakeCartStore) activeCart(arg database.ActiveCartParams) (database.Cart, error) {
	if f.cart == nil || f.cart.Status != database.CartStatusACTIVE {
		return database.Cart{}, pgx.ErrNoRows
	}
	if f.cart.CustomerID != arg.CustomerID || f.cart.RestaurantID != arg.RestaurantID || f.cart.Promotional != arg.Promotional {
		return database.Cart{}, pgx.ErrNoRows
	}
	return *f.cart, nil
}
func (f *fakeCartStore) GetCartForUpdate(ctx context.Context, id uuid.UUID) (database.Cart, error) {
	if f.cart != nil && f.cart.ID == id {
		return *f.cart, nil
	}
	return database.Cart{}, pgx.ErrNoRows
}
func (f *fakeCartStore) CreateCart(ctx context.Context, arg database.ActiveCartParams) (database.Cart, error) {
	cart := database.Cart{
		ID:           uuid.New(),
		CustomerID:   arg.CustomerID,
		RestaurantID: arg.RestaurantID,
		Promotional:  arg.Promotional,
		Status:       database.CartStatusACTIVE,
		TotalAmount:  makeNumeric("0"),
	}
	f.cart = &cart
	return cart, nil
}
func (f *fakeCartStore) SetCartAddress(ctx context.Context, arg database.SetCartAddressParams) (database.Cart, error) {
	f.cart.AddressID = arg.AddressID
	return *f.cart, nil
}
func (f *fakeCartStore) UpdateCartTotals(ctx context.Context, arg database.UpdateCartTotalsParams) (database.Cart, error) {
	f.cart.TotalAmount = arg.TotalAmount
	f.cart.TotalItems = arg.TotalItems
	return *f.cart, nil
}
func (f *fakeCartStore) GetCartItem(ctx context.Context, id uuid.UUID) (database.CartItem, error) {
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return database.CartItem{}, pgx.ErrNoRows
}
func (f *fakeCartStore) ListActiveCartItems(ctx context.Context, cartID uuid.UUID) ([]database.CartItem, error) {
	var out []database.CartItem
	for _, item := range f.items {
		if item.CartID == cartID && item.Status == database.CartItemStatusACTIVE {
			out = append(out, item)
		}
	}
	return out, nil
}
func (f *fakeCartStore) CreateCartItem(ctx context.Context, arg database.CreateCartItemParams) (database.CartItem, error) {
	item := database.CartItem{
		ID:         uuid.New(),
		CartID:     arg.CartID,
		ParentID:   arg.ParentID,
		ItemType:   arg.ItemType,
		ProductID:  arg.ProductID,
		ComboID:    arg.ComboID,
		AddonID:    arg.AddonID,
		Quantity:   arg.Quantity,
		UnitPrice:  arg.UnitPrice,
		TotalPrice: arg.TotalPrice,
		Notes:      arg.Notes,
		Status:     database.CartItemStatusACTIVE,
	}
	f.items = append(f.items, item)
	return item, nil
}
func (f *fakeCartStore) UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error) {
	for i := range f.items {
		if f.items[i].ID == arg.ID && f.items[i].Status == database.CartItemStatusACTIVE {
			f.items[i].Quantity = arg.Quantity
			f.items[i].TotalPrice = arg.TotalPrice
			return f.items[i], nil
		}
	}
	return database.CartItem{}, pgx.ErrNoRows
}
func (f *fakeCartStore) UpdateCartItemNotes(ctx context.Context, arg database.UpdateCartItemNotesParams) (database.CartItem, error) {
	for i := range f.items {
		if f.items[i].ID == arg.ID && f.items[i].Status == database.CartItemStatusACTIVE {
			f.items[i].Notes = arg.Notes
			return f.items[i], nil
		}
	}
	return database.CartItem{}, pgx.ErrNoRows
}
func (f *fakeCartStore) RemoveCartItemTree(ctx context.Context, id uuid.UUID) error {
	found := false
	for i := range f.items {
		if f.items[i].ID == id || (f.items[i].ParentID.Valid && f.items[i].ParentID.Bytes == id) {
			f.items[i].Status = database.CartItemStatusREMOVED
			found = true
		}
	}
	if !found {
		return pgx.ErrNoRows
	}
	return nil
}
func (f *fakeCartStore) RemoveAllCartItems(ctx context.Context, cartID uuid.UUID) error {
	for i := range f.items {
		if f.items[i].CartID == cartID {
			f.items[i].Status = database.CartItemStatusREMOVED
		}
	}
	return nil
}

func newTestCartService(store *fakeCartStore) (*CartService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	return NewCartService(pool, store, func(db database.DBTX) CartStore { return store }), tx
}

// =====================
// AddItem tests
// =====================

func TestAddItem_CreatesCartAndLine(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	addonID := store.addAddon("8.00")
	svc, tx := newTestCartService(store)
	customerID := uuid.New()

	view, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope:    CartScope{CustomerID: customerID, RestaurantID: store.restaurant.ID},
		ItemType: database.ItemTypePRODUCT,
		ItemID:   productID,
		Quantity: 2,
		AddonIDs: []uuid.UUID{addonID},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Fatal("expected transaction commit")
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(view.Items))
	}
	if len(view.Items[0].Addons) != 1 {
		t.Fatalf("expected 1 addon child, got %d", len(view.Items[0].Addons))
	}
	if view.Items[0].Addons[0].Quantity != 2 {
		t.Fatalf("addon quantity should mirror parent, got %d", view.Items[0].Addons[0].Quantity)
	}
	// total_amount sums every row: 2*100 + 2*8; total_items counts
	// top-level quantities only.
	if !numericEquals(view.Cart.TotalAmount, "216.00") {
		t.Fatalf("expected total 216.00, got %v", numericToDecimal(view.Cart.TotalAmount))
	}
	if view.Cart.TotalItems != 2 {
		t.Fatalf("expected 2 total items, got %d", view.Cart.TotalItems)
	}
}

func TestAddItem_MergesSameIdentity(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	a := store.addAddon("8.00")
	b := store.addAddon("5.00")
	svc, _ := newTestCartService(store)
	scope := CartScope{CustomerID: uuid.New(), RestaurantID: store.restaurant.ID}

	if _, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID,
		Quantity: 1, AddonIDs: []uuid.UUID{a, b},
	}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	// The same item with the addon set in reverse order merges.
	view, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID,
		Quantity: 2, AddonIDs: []uuid.UUID{b, a},
	})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected merge into 1 line, got %d", len(view.Items))
	}
	if view.Items[0].Item.Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", view.Items[0].Item.Quantity)
	}
	for _, addon := range view.Items[0].Addons {
		if addon.Quantity != 3 {
			t.Fatalf("addon quantity should follow merge, got %d", addon.Quantity)
		}
	}
	// 3*100 + 3*8 + 3*5 = 339
	if !numericEquals(view.Cart.TotalAmount, "339.00") {
		t.Fatalf("expected total 339.00, got %v", numericToDecimal(view.Cart.TotalAmount))
	}
}

func TestAddItem_DifferentAddonSetMakesNewLine(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	a := store.addAddon("8.00")
	svc, _ := newTestCartService(store)
	scope := CartScope{CustomerID: uuid.New(), RestaurantID: store.restaurant.ID}

	if _, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID, Quantity: 1,
		AddonIDs: []uuid.UUID{a},
	}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	view, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected 2 distinct lines, got %d", len(view.Items))
	}
}

func TestAddItem_ZeroQuantity(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	svc, _ := newTestCartService(store)

	_, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope:    CartScope{CustomerID: uuid.New(), RestaurantID: store.restaurant.ID},
		ItemType: database.ItemTypePRODUCT,
		ItemID:   productID,
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestAddItem_ComboWithAddonsRejected(t *testing.T) {
	store := newFakeCartStore()
	svc, _ := newTestCartService(store)

	_, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope:    CartScope{CustomerID: uuid.New(), RestaurantID: store.restaurant.ID},
		ItemType: database.ItemTypeCOMBO,
		ItemID:   uuid.New(),
		Quantity: 1,
		AddonIDs: []uuid.UUID{uuid.New()},
	})
	if !errors.Is(err, ErrAddonUnavailable) {
		t.Fatalf("expected ErrAddonUnavailable, got: %v", err)
	}
}

func TestAddItem_ClosedRestaurant(t *testing.T) {
	store := newFakeCartStore()
	store.restaurant.Active = false
	productID := store.addProduct("100.00")
	svc, _ := newTestCartService(store)

	_, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope:    CartScope{CustomerID: uuid.New(), RestaurantID: store.restaurant.ID},
		ItemType: database.ItemTypePRODUCT,
		ItemID:   productID,
		Quantity: 1,
	})
	if !errors.Is(err, ErrRestaurantClosed) {
		t.Fatalf("expected ErrRestaurantClosed, got: %v", err)
	}
}

func TestAddItem_InactiveProduct(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	p := store.products[productID]
	p.Active = false
	store.products[productID] = p
	svc, _ := newTestCartService(store)

	_, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope:    CartScope{CustomerID: uuid.New(), RestaurantID: store.restaurant.ID},
		ItemType: database.ItemTypePRODUCT,
		ItemID:   productID,
		Quantity: 1,
	})
	if !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got: %v", err)
	}
}

// =====================
// Line mutation tests
// =====================

func TestUpdateItemQuantity_PropagatesToAddons(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	addonID := store.addAddon("8.00")
	svc, _ := newTestCartService(store)
	customerID := uuid.New()
	scope := CartScope{CustomerID: customerID, RestaurantID: store.restaurant.ID}

	view, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID,
		Quantity: 1, AddonIDs: []uuid.UUID{addonID},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err = svc.UpdateItemQuantity(context.Background(), customerID, view.Items[0].Item.ID, 5)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if view.Items[0].Item.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", view.Items[0].Item.Quantity)
	}
	if view.Items[0].Addons[0].Quantity != 5 {
		t.Fatalf("expected addon quantity 5, got %d", view.Items[0].Addons[0].Quantity)
	}
	// 5*100 + 5*8 = 540
	if !numericEquals(view.Cart.TotalAmount, "540.00") {
		t.Fatalf("expected total 540.00, got %v", numericToDecimal(view.Cart.TotalAmount))
	}
}

func TestUpdateItemQuantity_AddonLineRejected(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	addonID := store.addAddon("8.00")
	svc, _ := newTestCartService(store)
	customerID := uuid.New()

	view, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope:    CartScope{CustomerID: customerID, RestaurantID: store.restaurant.ID},
		ItemType: database.ItemTypePRODUCT, ItemID: productID,
		Quantity: 1, AddonIDs: []uuid.UUID{addonID},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err = svc.UpdateItemQuantity(context.Background(), customerID, view.Items[0].Addons[0].ID, 2)
	if !errors.Is(err, ErrNotTopLevelItem) {
		t.Fatalf("expected ErrNotTopLevelItem, got: %v", err)
	}
}

func TestUpdateItemQuantity_NotOwner(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	svc, _ := newTestCartService(store)
	customerID := uuid.New()

	view, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope:    CartScope{CustomerID: customerID, RestaurantID: store.restaurant.ID},
		ItemType: database.ItemTypePRODUCT, ItemID: productID, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err = svc.UpdateItemQuantity(context.Background(), uuid.New(), view.Items[0].Item.ID, 2)
	if !errors.Is(err, ErrNotCartOwner) {
		t.Fatalf("expected ErrNotCartOwner, got: %v", err)
	}
}

func TestRemoveItem_RemovesAddonChildren(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	otherID := store.addProduct("50.00")
	addonID := store.addAddon("8.00")
	svc, _ := newTestCartService(store)
	customerID := uuid.New()
	scope := CartScope{CustomerID: customerID, RestaurantID: store.restaurant.ID}

	view, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID,
		Quantity: 2, AddonIDs: []uuid.UUID{addonID},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	target := view.Items[0].Item.ID
	if _, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: otherID, Quantity: 1,
	}); err != nil {
		t.Fatalf("add other: %v", err)
	}

	view, err = svc.RemoveItem(context.Background(), customerID, target)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 line left, got %d", len(view.Items))
	}
	if !numericEquals(view.Cart.TotalAmount, "50.00") {
		t.Fatalf("expected total 50.00, got %v", numericToDecimal(view.Cart.TotalAmount))
	}
	if view.Cart.TotalItems != 1 {
		t.Fatalf("expected 1 total item, got %d", view.Cart.TotalItems)
	}
}

func TestClear_EmptiesCart(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	svc, _ := newTestCartService(store)
	scope := CartScope{CustomerID: uuid.New(), RestaurantID: store.restaurant.ID}

	if _, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID, Quantity: 3,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err := svc.Clear(context.Background(), scope)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !numericEquals(view.Cart.TotalAmount, "0") {
		t.Fatalf("expected total 0, got %v", numericToDecimal(view.Cart.TotalAmount))
	}
	if view.Cart.TotalItems != 0 {
		t.Fatalf("expected 0 total items, got %d", view.Cart.TotalItems)
	}
}

func TestSetDeliveryAddress_ForeignAddressHidden(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	store.address = database.Address{ID: uuid.New(), UserID: uuid.New(), City: "Cairo"}
	svc, _ := newTestCartService(store)
	customerID := uuid.New()
	scope := CartScope{CustomerID: customerID, RestaurantID: store.restaurant.ID}

	if _, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID, Quantity: 1,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := svc.SetDeliveryAddress(context.Background(), scope, store.address.ID)
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound for foreign address, got: %v", err)
	}
}

func TestSetDeliveryAddress_OwnAddress(t *testing.T) {
	store := newFakeCartStore()
	productID := store.addProduct("100.00")
	svc, _ := newTestCartService(store)
	customerID := uuid.New()
	store.address = database.Address{ID: uuid.New(), UserID: customerID, City: "Cairo"}
	scope := CartScope{CustomerID: customerID, RestaurantID: store.restaurant.ID}

	if _, err := svc.AddItem(context.Background(), AddItemRequest{
		Scope: scope, ItemType: database.ItemTypePRODUCT, ItemID: productID, Quantity: 1,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err := svc.SetDeliveryAddress(context.Background(), scope, store.address.ID)
	if err != nil {
		t.Fatalf("set address: %v", err)
	}
	if !view.Cart.AddressID.Valid || view.Cart.AddressID.Bytes != store.address.ID {
		t.Fatal("expected cart address to be set")
	}
}

func TestGetCart_NoActiveCart(t *testing.T) {
	store := newFakeCartStore()
	svc, _ := newTestCartService(store)

	_, err := svc.GetCart(context.Background(), CartScope{CustomerID: uuid.New(), RestaurantID: store.restaurant.ID})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got: %v", err)
	}
}
