// Package memstore is an in-process store.Store used for local development
// (STORE_DRIVER=memory) and as the fake behind service tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/store"
)

type state struct {
	tables     map[int64]domain.Table
	orders     map[int64]domain.Order
	items      map[int64]domain.LineItem
	products   map[int64]domain.Product
	categories map[int64]domain.Category
	nextID     int64
}

func (s *state) clone() *state {
	out := &state{
		tables:     make(map[int64]domain.Table, len(s.tables)),
		orders:     make(map[int64]domain.Order, len(s.orders)),
		items:      make(map[int64]domain.LineItem, len(s.items)),
		products:   make(map[int64]domain.Product, len(s.products)),
		categories: make(map[int64]domain.Category, len(s.categories)),
		nextID:     s.nextID,
	}
	for k, v := range s.tables {
		out.tables[k] = copyTable(v)
	}
	for k, v := range s.orders {
		out.orders[k] = copyOrder(v)
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	return out
}

// Store serialises every transaction behind one mutex, so a check-then-write
// inside WithTx cannot interleave with another request.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{
		st: &state{
			tables:     make(map[int64]domain.Table),
			orders:     make(map[int64]domain.Order),
			items:      make(map[int64]domain.LineItem),
			products:   make(map[int64]domain.Product),
			categories: make(map[int64]domain.Category),
		},
		now: time.Now,
	}
}

func (s *Store) Close() {}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	if err := fn(ctx, &tx{st: s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) AddCategory(name string, active bool) domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextID++
	c := domain.Category{ID: s.st.nextID, Name: name, IsActive: active}
	s.st.categories[c.ID] = c
	return c
}

func (s *Store) AddProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.st.nextID++
		p.ID = s.st.nextID
	} else if p.ID > s.st.nextID {
		s.st.nextID = p.ID
	}
	s.st.products[p.ID] = p
	return p
}

func (s *Store) SetProductPrice(id int64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[id]
	p.Price = mustDecimal(price)
	s.st.products[id] = p
}

func (s *Store) AddTable(t store.NewTable) domain.Table {
	var out domain.Table
	_ = s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.InsertTable(ctx, t)
		return err
	})
	return out
}

// Corrupt overwrites a table row as-is, bypassing the state machine. Tests use
// it to simulate drift between tables and orders.
func (s *Store) Corrupt(t domain.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.tables[t.ID] = copyTable(t)
}

// SeedDemo loads a small menu and floor for development runs.
func (s *Store) SeedDemo() {
	drinks := s.AddCategory("Drinks", true)
	food := s.AddCategory("Food", true)
	for _, p := range []domain.Product{
		{Name: "Espresso", Price: mustDecimal("3.00"), CategoryID: &drinks.ID, IsActive: true},
		{Name: "Latte", Price: mustDecimal("4.50"), CategoryID: &drinks.ID, IsActive: true},
		{Name: "Cheesecake", Price: mustDecimal("6.00"), CategoryID: &food.ID, IsActive: true},
		{Name: "Club Sandwich", Price: mustDecimal("9.50"), CategoryID: &food.ID, IsActive: true},
	} {
		s.AddProduct(p)
	}
	for _, t := range []store.NewTable{
		{Name: "T1", Location: "Garden", Capacity: 2},
		{Name: "T2", Location: "Garden", Capacity: 4},
		{Name: "T3", Location: "Indoor", Capacity: 4},
		{Name: "T4", Location: "Indoor", Capacity: 6},
	} {
		s.AddTable(t)
	}
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) id() int64 {
	t.st.nextID++
	return t.st.nextID
}

func (t *tx) GetTable(_ context.Context, id int64, _ bool) (domain.Table, error) {
	table, ok := t.st.tables[id]
	if !ok {
		return domain.Table{}, store.ErrNotFound
	}
	return copyTable(table), nil
}

func (t *tx) ListTables(_ context.Context) ([]domain.Table, error) {
	out := make([]domain.Table, 0, len(t.st.tables))
	for _, table := range t.st.tables {
		out = append(out, copyTable(table))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (t *tx) FindTableByOccupant(_ context.Context, sessionID string) (domain.Table, bool, error) {
	for _, table := range t.st.tables {
		if table.IsOwnedBy(sessionID) {
			return copyTable(table), true, nil
		}
	}
	return domain.Table{}, false, nil
}

func (t *tx) InsertTable(_ context.Context, nt store.NewTable) (domain.Table, error) {
	for _, existing := range t.st.tables {
		if strings.EqualFold(existing.Name, nt.Name) {
			return domain.Table{}, store.ErrConflict
		}
	}
	table := domain.Table{
		ID:        t.id(),
		Name:      nt.Name,
		Location:  nt.Location,
		Capacity:  nt.Capacity,
		Status:    domain.TableEmpty,
		UpdatedAt: t.now(),
	}
	t.st.tables[table.ID] = table
	return copyTable(table), nil
}

func (t *tx) UpdateTable(_ context.Context, table domain.Table) error {
	if _, ok := t.st.tables[table.ID]; !ok {
		return store.ErrNotFound
	}
	if table.Status == domain.TableOccupied && table.OccupiedBy != nil {
		for id, other := range t.st.tables {
			if id != table.ID && other.Status == domain.TableOccupied && other.OccupiedBy != nil && *other.OccupiedBy == *table.OccupiedBy {
				return store.ErrConflict
			}
		}
	}
	table.UpdatedAt = t.now()
	t.st.tables[table.ID] = copyTable(table)
	return nil
}

func (t *tx) DeleteTable(_ context.Context, id int64) error {
	if _, ok := t.st.tables[id]; !ok {
		return store.ErrNotFound
	}
	for _, o := range t.st.orders {
		if o.TableID == id {
			return store.ErrConflict
		}
	}
	delete(t.st.tables, id)
	return nil
}

func (t *tx) ListHelpRequests(_ context.Context) ([]domain.HelpRequest, error) {
	out := make([]domain.HelpRequest, 0)
	for _, table := range t.st.tables {
		if table.HelpRequested {
			out = append(out, domain.HelpRequest{TableID: table.ID, TableName: table.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableID < out[j].TableID })
	return out, nil
}

func (t *tx) GetOrder(_ context.Context, id int64, _ bool) (domain.Order, error) {
	order, ok := t.st.orders[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	return copyOrder(order), nil
}

func (t *tx) InsertOrder(_ context.Context, o domain.Order) (domain.Order, error) {
	if !o.IsPaid {
		for _, existing := range t.st.orders {
			if existing.TableID == o.TableID && !existing.IsPaid {
				return domain.Order{}, store.ErrConflict
			}
		}
	}
	o.ID = t.id()
	o.LineItems = nil
	t.st.orders[o.ID] = copyOrder(o)
	return copyOrder(o), nil
}

func (t *tx) UpdateOrder(_ context.Context, o domain.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return store.ErrNotFound
	}
	o.LineItems = nil
	t.st.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *tx) ListOrders(_ context.Context, filter store.OrderFilter) ([]domain.OrderSummary, error) {
	needle := strings.ToLower(strings.TrimSpace(filter.TableName))
	out := make([]domain.OrderSummary, 0)
	for _, o := range t.st.orders {
		if o.IsPaid != filter.Paid {
			continue
		}
		if filter.Paid && o.CloseTime == nil {
			continue
		}
		tableName := t.st.tables[o.TableID].Name
		if needle != "" && !strings.Contains(strings.ToLower(tableName), needle) {
			continue
		}
		out = append(out, domain.OrderSummary{
			ID:          o.ID,
			TableID:     o.TableID,
			TableName:   tableName,
			OpenTime:    o.OpenTime,
			CloseTime:   o.CloseTime,
			IsPaid:      o.IsPaid,
			TotalAmount: o.TotalAmount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Paid {
			return out[i].CloseTime.After(*out[j].CloseTime)
		}
		return out[i].OpenTime.After(out[j].OpenTime)
	})
	return out, nil
}

func (t *tx) ListLineItems(_ context.Context, orderID int64) ([]domain.LineItem, error) {
	out := make([]domain.LineItem, 0)
	for _, li := range t.st.items {
		if li.OrderID == orderID {
			out = append(out, t.withProductName(li))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) GetLineItem(_ context.Context, id int64, _ bool) (domain.LineItem, error) {
	li, ok := t.st.items[id]
	if !ok {
		return domain.LineItem{}, store.ErrNotFound
	}
	return t.withProductName(li), nil
}

func (t *tx) FindLineItemByProduct(_ context.Context, orderID, productID int64) (domain.LineItem, bool, error) {
	for _, li := range t.st.items {
		if li.OrderID == orderID && li.ProductID == productID {
			return t.withProductName(li), true, nil
		}
	}
	return domain.LineItem{}, false, nil
}

func (t *tx) InsertLineItem(_ context.Context, li domain.LineItem) (domain.LineItem, error) {
	if _, ok := t.st.orders[li.OrderID]; !ok {
		return domain.LineItem{}, store.ErrNotFound
	}
	for _, existing := range t.st.items {
		if existing.OrderID == li.OrderID && existing.ProductID == li.ProductID {
			return domain.LineItem{}, store.ErrConflict
		}
	}
	li.ID = t.id()
	li.ProductName = ""
	t.st.items[li.ID] = li
	return t.withProductName(li), nil
}

func (t *tx) UpdateLineItemQuantity(_ context.Context, id int64, quantity int) error {
	li, ok := t.st.items[id]
	if !ok {
		return store.ErrNotFound
	}
	li.Quantity = quantity
	t.st.items[id] = li
	return nil
}

func (t *tx) DeleteLineItem(_ context.Context, id int64) error {
	if _, ok := t.st.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.items, id)
	return nil
}

func (t *tx) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	return t.withCategoryName(p), nil
}

func (t *tx) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, t.withCategoryName(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) ListCategories(_ context.Context, activeOnly bool) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(t.st.categories))
	for _, c := range t.st.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tx) withProductName(li domain.LineItem) domain.LineItem {
	if p, ok := t.st.products[li.ProductID]; ok {
		li.ProductName = p.Name
	}
	return li
}

func (t *tx) withCategoryName(p domain.Product) domain.Product {
	if p.CategoryID != nil {
		p.CategoryName = t.st.categories[*p.CategoryID].Name
	}
	return p
}
