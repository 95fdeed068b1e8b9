package service

import (
	"context"
	"sort"
	"time"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/store"
)

// fakeSource is an in-memory normalized store. Writes become visible on commit.
type fakeSource struct {
	customers []models.Customer
	products  []models.Product
	orders    []models.Order
	items     []models.OrderItem
	nextID    int64

	// insertErr fails the insert of the row with this email or product name
	insertErr map[string]error
	// itemErr fails CreateOrderItem for this product id
	itemErr map[int64]error
	// commitErr fails every commit
	commitErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{insertErr: map[string]error{}, itemErr: map[int64]error{}}
}

func (s *fakeSource) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeSource) Begin(ctx context.Context) (store.Tx, error) {
	return &fakeTx{src: s}, nil
}

func (s *fakeSource) CustomerIdentities(ctx context.Context) (map[string]int64, error) {
	ids := make(map[string]int64)
	for _, c := range s.customers {
		ids[c.Email] = c.CustomerID
	}
	return ids, nil
}

func (s *fakeSource) ProductIdentities(ctx context.Context) (map[models.ProductKey]models.ProductRef, error) {
	refs := make(map[models.ProductKey]models.ProductRef)
	for _, p := range s.products {
		refs[models.ProductKey{Name: p.ProductName, Category: p.Category}] = models.ProductRef{ProductID: p.ProductID, Price: p.Price}
	}
	return refs, nil
}

func (s *fakeSource) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return s.customers, nil
}

func (s *fakeSource) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products, nil
}

func (s *fakeSource) ListOrderDates(ctx context.Context) ([]time.Time, error) {
	var dates []time.Time
	for _, o := range s.orders {
		dates = append(dates, o.OrderDate)
	}
	return dates, nil
}

func (s *fakeSource) ListSalesLines(ctx context.Context, afterItemID int64) ([]models.SalesLine, error) {
	orders := make(map[int64]models.Order)
	for _, o := range s.orders {
		orders[o.OrderID] = o
	}

	var lines []models.SalesLine
	for _, it := range s.items {
		if it.OrderItemID <= afterItemID {
			continue
		}
		o := orders[it.OrderID]
		lines = append(lines, models.SalesLine{
			OrderItemID: it.OrderItemID,
			OrderID:     o.OrderID,
			CustomerID:  o.CustomerID,
			ProductID:   it.ProductID,
			OrderDate:   o.OrderDate,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].OrderItemID < lines[j].OrderItemID })
	return lines, nil
}

type fakeTx struct {
	src       *fakeSource
	customers []models.Customer
	products  []models.Product
	orders    []models.Order
	items     []models.OrderItem
}

func duplicate(op string) error {
	return &store.PersistError{Kind: store.Duplicate, Op: op, Err: store.ErrDuplicate}
}

func (t *fakeTx) InsertCustomer(ctx context.Context, c *models.Customer) error {
	if err := t.src.insertErr[c.Email]; err != nil {
		return err
	}
	for _, set := range [][]models.Customer{t.src.customers, t.customers} {
		for _, existing := range set {
			if existing.Email == c.Email {
				return duplicate("insert customer")
			}
		}
	}
	c.CustomerID = t.src.id()
	t.customers = append(t.customers, *c)
	return nil
}

func (t *fakeTx) InsertProduct(ctx context.Context, p *models.Product) error {
	if err := t.src.insertErr[p.ProductName]; err != nil {
		return err
	}
	for _, set := range [][]models.Product{t.src.products, t.products} {
		for _, existing := range set {
			if existing.ProductName == p.ProductName && existing.Category == p.Category {
				return duplicate("insert product")
			}
		}
	}
	p.ProductID = t.src.id()
	t.products = append(t.products, *p)
	return nil
}

func (t *fakeTx) CreateOrder(ctx context.Context, o *models.Order) error {
	o.OrderID = t.src.id()
	t.orders = append(t.orders, *o)
	return nil
}

func (t *fakeTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if err := t.src.itemErr[item.ProductID]; err != nil {
		return err
	}
	item.OrderItemID = t.src.id()
	t.items = append(t.items, *item)
	return nil
}

func (t *fakeTx) Commit() error {
	if t.src.commitErr != nil {
		return t.src.commitErr
	}
	t.src.customers = append(t.src.customers, t.customers...)
	t.src.products = append(t.src.products, t.products...)
	t.src.orders = append(t.src.orders, t.orders...)
	t.src.items = append(t.src.items, t.items...)
	t.customers, t.products, t.orders, t.items = nil, nil, nil, nil
	return nil
}

func (t *fakeTx) Rollback() error {
	t.customers, t.products, t.orders, t.items = nil, nil, nil, nil
	return nil
}

// fakeWarehouse is an in-memory dimensional store keyed by natural key
type fakeWarehouse struct {
	customers map[int64]int64
	products  map[int64]int64
	dates     map[string]int64
	facts     map[int64]models.FactSales
	nextKey   int64

	// hideProduct makes ProductKeys omit this product id
	hideProduct int64
	commits     int
	rollbacks   int
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{
		customers: map[int64]int64{},
		products:  map[int64]int64{},
		dates:     map[string]int64{},
		facts:     map[int64]models.FactSales{},
	}
}

func (w *fakeWarehouse) Begin(ctx context.Context) (store.WarehouseTx, error) {
	tx := &fakeWarehouseTx{
		w:         w,
		customers: copyKeys(w.customers),
		products:  copyKeys(w.products),
		dates:     make(map[string]int64, len(w.dates)),
		facts:     make(map[int64]models.FactSales, len(w.facts)),
		nextKey:   w.nextKey,
	}
	for k, v := range w.dates {
		tx.dates[k] = v
	}
	for k, v := range w.facts {
		tx.facts[k] = v
	}
	return tx, nil
}

func copyKeys(m map[int64]int64) map[int64]int64 {
	out := make(map[int64]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type fakeWarehouseTx struct {
	w         *fakeWarehouse
	customers map[int64]int64
	products  map[int64]int64
	dates     map[string]int64
	facts     map[int64]models.FactSales
	nextKey   int64
	done      bool
}

func (t *fakeWarehouseTx) key() int64 {
	t.nextKey++
	return t.nextKey
}

func (t *fakeWarehouseTx) InsertDimCustomers(ctx context.Context, rows []models.DimCustomer) (int64, error) {
	var n int64
	for _, r := range rows {
		if _, ok := t.customers[r.CustomerID]; !ok {
			t.customers[r.CustomerID] = t.key()
			n++
		}
	}
	return n, nil
}

func (t *fakeWarehouseTx) InsertDimProducts(ctx context.Context, rows []models.DimProduct) (int64, error) {
	var n int64
	for _, r := range rows {
		if _, ok := t.products[r.ProductID]; !ok {
			t.products[r.ProductID] = t.key()
			n++
		}
	}
	return n, nil
}

func (t *fakeWarehouseTx) InsertDimDates(ctx context.Context, rows []models.DimDate) (int64, error) {
	var n int64
	for _, r := range rows {
		k := r.FullDate.Format(models.DateLayout)
		if _, ok := t.dates[k]; !ok {
			t.dates[k] = t.key()
			n++
		}
	}
	return n, nil
}

func (t *fakeWarehouseTx) CustomerKeys(ctx context.Context) (map[int64]int64, error) {
	return copyKeys(t.customers), nil
}

func (t *fakeWarehouseTx) ProductKeys(ctx context.Context) (map[int64]int64, error) {
	keys := copyKeys(t.products)
	delete(keys, t.w.hideProduct)
	return keys, nil
}

func (t *fakeWarehouseTx) DateKeys(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(t.dates))
	for k, v := range t.dates {
		out[k] = v
	}
	return out, nil
}

func (t *fakeWarehouseTx) InsertFacts(ctx context.Context, rows []models.FactSales) (int64, error) {
	var n int64
	for _, r := range rows {
		if _, ok := t.facts[r.OrderItemID]; !ok {
			t.facts[r.OrderItemID] = r
			n++
		}
	}
	return n, nil
}

func (t *fakeWarehouseTx) MaxFactItemID(ctx context.Context) (int64, error) {
	var top int64
	for id := range t.facts {
		if id > top {
			top = id
		}
	}
	return top, nil
}

func (t *fakeWarehouseTx) Commit() error {
	t.w.customers, t.w.products, t.w.dates, t.w.facts = t.customers, t.products, t.dates, t.facts
	t.w.nextKey = t.nextKey
	t.w.commits++
	t.done = true
	return nil
}

func (t *fakeWarehouseTx) Rollback() error {
	if !t.done {
		t.w.rollbacks++
		t.done = true
	}
	return nil
}

type fakeWatermark struct {
	value  int64
	saves  int
	resets int
}

func (w *fakeWatermark) Load() (int64, error) { return w.value, nil }

func (w *fakeWatermark) Save(id int64) error {
	if id > w.value {
		w.value = id
	}
	w.saves++
	return nil
}

func (w *fakeWatermark) Reset() error {
	w.value = 0
	w.resets++
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	released []string
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	delete(l.held, key)
	l.released = append(l.released, key)
	return nil
}

type fakeEvents struct {
	completed []*models.RunCompletedEvent
	failed    []*models.RunFailedEvent
}

func (e *fakeEvents) PublishRunCompleted(ctx context.Context, event *models.RunCompletedEvent) error {
	e.completed = append(e.completed, event)
	return nil
}

func (e *fakeEvents) PublishRunFailed(ctx context.Context, event *models.RunFailedEvent) error {
	e.failed = append(e.failed, event)
	return nil
}

type fakeCache struct {
	reports map[string]*models.RunReport
}

func (c *fakeCache) SaveRunReport(ctx context.Context, r *models.RunReport) error {
	c.reports[r.Pipeline] = r
	return nil
}

func (c *fakeCache) GetRunReport(ctx context.Context, pipeline string) (*models.RunReport, error) {
	return c.reports[pipeline], nil
}
