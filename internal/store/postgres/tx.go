package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type pgTx struct {
	tx    pgx.Tx
	dirty bool
}

func (t *pgTx) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	t.dirty = true
	return nil
}

func (t *pgTx) GetTable(ctx context.Context, id int64, lock bool) (domain.Table, error) {
	row := t.tx.QueryRow(ctx, `select `+tableColumns+` from cafe_tables where id = $1`+lockClause(lock), id)
	table, err := scanTable(row)
	return table, translate(err)
}

func (t *pgTx) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := t.tx.Query(ctx, `select `+tableColumns+` from cafe_tables order by location, name`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]domain.Table, 0)
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, table)
	}
	return out, rows.Err()
}

func (t *pgTx) FindTableByOccupant(ctx context.Context, sessionID string) (domain.Table, bool, error) {
	row := t.tx.QueryRow(ctx, `
		select `+tableColumns+`
		from cafe_tables
		where occupied_by = $1 and status = 'OCCUPIED'
		order by id
		limit 1
	`, sessionID)
	table, err := scanTable(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Table{}, false, nil
		}
		return domain.Table{}, false, translate(err)
	}
	return table, true, nil
}

func (t *pgTx) InsertTable(ctx context.Context, nt store.NewTable) (domain.Table, error) {
	row := t.tx.QueryRow(ctx, `
		insert into cafe_tables (name, location, capacity, status)
		values ($1, $2, $3, 'EMPTY')
		returning `+tableColumns, nt.Name, nt.Location, nt.Capacity)
	table, err := scanTable(row)
	if err != nil {
		return domain.Table{}, translate(err)
	}
	t.dirty = true
	return table, nil
}

func (t *pgTx) UpdateTable(ctx context.Context, table domain.Table) error {
	return t.exec(ctx, `
		update cafe_tables
		set status = $2, occupied_by = $3, current_order_id = $4, help_requested = $5,
		    name = $6, location = $7, capacity = $8, updated_at = now()
		where id = $1
	`, table.ID, string(table.Status), table.OccupiedBy, table.CurrentOrderID, table.HelpRequested,
		table.Name, table.Location, table.Capacity)
}

func (t *pgTx) DeleteTable(ctx context.Context, id int64) error {
	return t.exec(ctx, `delete from cafe_tables where id = $1`, id)
}

func (t *pgTx) ListHelpRequests(ctx context.Context) ([]domain.HelpRequest, error) {
	rows, err := t.tx.Query(ctx, `select id, name from cafe_tables where help_requested order by id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]domain.HelpRequest, 0)
	for rows.Next() {
		var hr domain.HelpRequest
		if err := rows.Scan(&hr.TableID, &hr.TableName); err != nil {
			return nil, err
		}
		out = append(out, hr)
	}
	return out, rows.Err()
}

func (t *pgTx) GetOrder(ctx context.Context, id int64, lock bool) (domain.Order, error) {
	row := t.tx.QueryRow(ctx, `select `+orderColumns+` from orders where id = $1`+lockClause(lock), id)
	order, err := scanOrder(row)
	return order, translate(err)
}

func (t *pgTx) InsertOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	row := t.tx.QueryRow(ctx, `
		insert into orders (table_id, open_time, close_time, is_paid, total_amount)
		values ($1, $2, $3, $4, $5::numeric)
		returning `+orderColumns, o.TableID, o.OpenTime, o.CloseTime, o.IsPaid, money(o.TotalAmount))
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, translate(err)
	}
	t.dirty = true
	return order, nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o domain.Order) error {
	return t.exec(ctx, `
		update orders
		set close_time = $2, is_paid = $3, total_amount = $4::numeric
		where id = $1
	`, o.ID, o.CloseTime, o.IsPaid, money(o.TotalAmount))
}

func (t *pgTx) ListOrders(ctx context.Context, filter store.OrderFilter) ([]domain.OrderSummary, error) {
	query := `
		select o.id, o.table_id, coalesce(t.name, ''), o.open_time, o.close_time, o.is_paid, o.total_amount
		from orders o
		left join cafe_tables t on t.id = o.table_id
		where o.is_paid = $1
	`
	args := []any{filter.Paid}
	if filter.Paid {
		query += ` and o.close_time is not null`
	}
	if name := strings.TrimSpace(filter.TableName); name != "" {
		args = append(args, "%"+name+"%")
		query += fmt.Sprintf(` and t.name ilike $%d`, len(args))
	}
	if filter.Paid {
		query += ` order by o.close_time desc`
	} else {
		query += ` order by o.open_time desc`
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]domain.OrderSummary, 0)
	for rows.Next() {
		var (
			s         domain.OrderSummary
			closeTime pgtype.Timestamptz
			total     pgtype.Numeric
		)
		if err := rows.Scan(&s.ID, &s.TableID, &s.TableName, &s.OpenTime, &closeTime, &s.IsPaid, &total); err != nil {
			return nil, err
		}
		s.CloseTime = timePtr(closeTime)
		s.TotalAmount = numericToDecimal(total)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *pgTx) ListLineItems(ctx context.Context, orderID int64) ([]domain.LineItem, error) {
	rows, err := t.tx.Query(ctx, `
		select `+lineItemColumns+`
		from order_line_items li
		left join products p on p.id = li.product_id
		where li.order_id = $1
		order by li.id
	`, orderID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]domain.LineItem, 0)
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (t *pgTx) GetLineItem(ctx context.Context, id int64, lock bool) (domain.LineItem, error) {
	suffix := ""
	if lock {
		suffix = " for update of li"
	}
	row := t.tx.QueryRow(ctx, `
		select `+lineItemColumns+`
		from order_line_items li
		left join products p on p.id = li.product_id
		where li.id = $1`+suffix, id)
	li, err := scanLineItem(row)
	return li, translate(err)
}

func (t *pgTx) FindLineItemByProduct(ctx context.Context, orderID, productID int64) (domain.LineItem, bool, error) {
	row := t.tx.QueryRow(ctx, `
		select `+lineItemColumns+`
		from order_line_items li
		left join products p on p.id = li.product_id
		where li.order_id = $1 and li.product_id = $2
		for update of li
	`, orderID, productID)
	li, err := scanLineItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LineItem{}, false, nil
		}
		return domain.LineItem{}, false, translate(err)
	}
	return li, true, nil
}

func (t *pgTx) InsertLineItem(ctx context.Context, li domain.LineItem) (domain.LineItem, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `
		insert into order_line_items (order_id, product_id, quantity, price)
		values ($1, $2, $3, $4::numeric)
		returning id
	`, li.OrderID, li.ProductID, li.Quantity, money(li.Price)).Scan(&id); err != nil {
		return domain.LineItem{}, translate(err)
	}
	t.dirty = true
	return t.GetLineItem(ctx, id, false)
}

func (t *pgTx) UpdateLineItemQuantity(ctx context.Context, id int64, quantity int) error {
	return t.exec(ctx, `update order_line_items set quantity = $2 where id = $1`, id, quantity)
}

func (t *pgTx) DeleteLineItem(ctx context.Context, id int64) error {
	return t.exec(ctx, `delete from order_line_items where id = $1`, id)
}

func (t *pgTx) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	row := t.tx.QueryRow(ctx, `
		select `+productColumns+`
		from products p
		left join categories c on c.id = p.category_id
		where p.id = $1
	`, id)
	p, err := scanProduct(row)
	return p, translate(err)
}

func (t *pgTx) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	rows, err := t.tx.Query(ctx, `
		select `+productColumns+`
		from products p
		left join categories c on c.id = p.category_id
		where ($1::boolean = false or p.is_active)
		order by p.id
	`, activeOnly)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	rows, err := t.tx.Query(ctx, `
		select id, name, is_active
		from categories
		where ($1::boolean = false or is_active)
		order by name
	`, activeOnly)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
