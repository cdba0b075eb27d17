package keyedstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"pps/pkg/platform/sentinel"
)

// PostgresBackend stores each logical table as a physical table of JSONB
// documents keyed by (pk, sk). Key values are kept in text columns and in the
// document itself; ordering uses typed expressions over the document.
//
// Conditional updates run in a transaction that takes the row lock with
// SELECT ... FOR UPDATE, evaluates guards against the locked document and
// writes it back, so concurrent updates to one item are serialized.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// EnsureSchema creates the physical table and index expressions for s.
func (b *PostgresBackend) EnsureSchema(ctx context.Context, s Schema) error {
	table := pq.QuoteIdentifier(s.Table)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			pk TEXT NOT NULL,
			sk TEXT NOT NULL DEFAULT '',
			doc JSONB NOT NULL,
			PRIMARY KEY (pk, sk)
		)`, table),
	}
	for _, idx := range s.Indexes {
		cols := []string{fmt.Sprintf("(doc->>%s)", pq.QuoteLiteral(idx.Partition.Name))}
		if idx.Sort != nil {
			cols = append(cols, sortExpr(*idx.Sort))
		}
		stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
			pq.QuoteIdentifier(s.Table+"_"+idx.Name+"_idx"), table, strings.Join(cols, ", ")))
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("ensure schema "+s.Table, err)
		}
	}
	return nil
}

// sortExpr is the typed ordering expression for a key attribute.
func sortExpr(def KeyDef) string {
	attr := fmt.Sprintf("(doc->>%s)", pq.QuoteLiteral(def.Name))
	if def.Type == KeyNumber {
		return "(" + attr + "::numeric)"
	}
	return "(" + attr + ` COLLATE "C")`
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrUnavailable, err))
}

func (b *PostgresBackend) Put(ctx context.Context, s Schema, key Key, item Item, ifAbsent bool) error {
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("%w: encode item: %v", ErrInvalidRequest, err)
	}
	conflict := "DO UPDATE SET doc = EXCLUDED.doc"
	if ifAbsent {
		conflict = "DO NOTHING"
	}
	query := fmt.Sprintf(`INSERT INTO %s (pk, sk, doc) VALUES ($1, $2, $3) ON CONFLICT (pk, sk) %s`,
		pq.QuoteIdentifier(s.Table), conflict)
	res, err := b.db.ExecContext(ctx, query, keyText(key.Partition), keyText(key.Sort), doc)
	if err != nil {
		return unavailable("put "+s.Table, err)
	}
	if ifAbsent {
		rows, err := res.RowsAffected()
		if err != nil {
			return unavailable("put "+s.Table+" rows affected", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s item %v", sentinel.ErrAlreadyUsed, s.Table, key)
		}
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, s Schema, key Key) (Item, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE pk = $1 AND sk = $2`, pq.QuoteIdentifier(s.Table))
	var doc []byte
	err := b.db.QueryRowContext(ctx, query, keyText(key.Partition), keyText(key.Sort)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get "+s.Table, err)
	}
	return decodeDoc(doc)
}

func (b *PostgresBackend) Query(ctx context.Context, s Schema, q resolvedQuery) (*Page, error) {
	var (
		where = []string{}
		args  = []any{}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Index == "" {
		where = append(where, "pk = "+arg(keyText(q.Partition)))
	} else {
		where = append(where, fmt.Sprintf("(doc->>%s) = %s", pq.QuoteLiteral(q.partitionDef.Name), arg(keyText(q.Partition))))
	}

	order := []string{}
	if q.sortDef != nil {
		sortCol := sortExpr(*q.sortDef)
		where = append(where, fmt.Sprintf("doc ? %s", pq.QuoteLiteral(q.sortDef.Name)))
		if q.Sort != nil {
			switch q.Sort.Op {
			case SortBeginsWith:
				where = append(where, fmt.Sprintf("starts_with((doc->>%s), %s)", pq.QuoteLiteral(q.sortDef.Name), arg(q.Sort.Value)))
			case SortLessThan:
				where = append(where, fmt.Sprintf("%s < %s", sortCol, typedArg(*q.sortDef, arg(keyText(q.Sort.Value)))))
			}
		}
		if q.after != nil {
			where = append(where, fmt.Sprintf(`(%s, pk COLLATE "C", sk COLLATE "C") > (%s, %s, %s)`,
				sortCol, typedArg(*q.sortDef, arg(keyText(q.after.Sort))), arg(q.after.Partition), arg(q.after.SortKey)))
		}
		order = append(order, sortCol)
	} else if q.after != nil {
		where = append(where, fmt.Sprintf(`(pk COLLATE "C", sk COLLATE "C") > (%s, %s)`, arg(q.after.Partition), arg(q.after.SortKey)))
	}
	order = append(order, `pk COLLATE "C"`, `sk COLLATE "C"`)

	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY %s LIMIT %s`,
		pq.QuoteIdentifier(s.Table), strings.Join(where, " AND "), strings.Join(order, ", "), arg(q.Limit+1))

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query "+s.Table, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, unavailable("scan "+s.Table, err)
		}
		item, err := decodeDoc(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query "+s.Table, err)
	}

	page := &Page{Items: items}
	if len(items) > q.Limit {
		page.Items = items[:q.Limit]
		page.Next = q.cursorFor(s, page.Items[len(page.Items)-1])
	}
	return page, nil
}

func typedArg(def KeyDef, placeholder string) string {
	if def.Type == KeyNumber {
		return placeholder + "::numeric"
	}
	return placeholder + `::text COLLATE "C"`
}

func (b *PostgresBackend) Update(ctx context.Context, s Schema, key Key, mutate func(Item) (Item, error)) (Item, Item, error) {
	table := pq.QuoteIdentifier(s.Table)
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, unavailable("begin update "+s.Table, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var doc []byte
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE pk = $1 AND sk = $2 FOR UPDATE`, table),
		keyText(key.Partition), keyText(key.Sort)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s item %v", sentinel.ErrNotFound, s.Table, key)
	}
	if err != nil {
		return nil, nil, unavailable("lock "+s.Table, err)
	}
	old, err := decodeDoc(doc)
	if err != nil {
		return nil, nil, err
	}
	next, err := mutate(old)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := json.Marshal(next)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode item: %v", ErrInvalidRequest, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET doc = $3 WHERE pk = $1 AND sk = $2`, table),
		keyText(key.Partition), keyText(key.Sort), encoded); err != nil {
		return nil, nil, unavailable("update "+s.Table, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, unavailable("commit update "+s.Table, err)
	}
	return old, next, nil
}

func (b *PostgresBackend) Delete(ctx context.Context, s Schema, key Key) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE pk = $1 AND sk = $2`, pq.QuoteIdentifier(s.Table))
	if _, err := b.db.ExecContext(ctx, query, keyText(key.Partition), keyText(key.Sort)); err != nil {
		return unavailable("delete "+s.Table, err)
	}
	return nil
}

func decodeDoc(doc []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode stored item: %w", err)
	}
	return normalizeItem(raw)
}
