package store

import "context"

// ExecRows runs a write and reports rows affected. Batch inserts compare it
// against the batch length
func ExecRows(ctx context.Context, q RowQuerier, sql string, args ...any) (n int64, err error) {
	tag, err := q.Exec(ctx, sql, args...)
	if err == nil {
		n = tag.RowsAffected()
	}
	return n, err
}

// Scalar reads one column of one row. On error T is zero
func Scalar[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	var v T
	err := q.QueryRow(ctx, sql, args...).Scan(&v)
	if err != nil {
		return *new(T), err
	}
	return v, nil
}
