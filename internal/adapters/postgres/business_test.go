package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/pkg/errors"
)

func TestCheckReadOnly(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr error
	}{
		{"select", "SELECT * FROM orders", nil},
		{"lowercase with trailing semicolon", "select 1;", nil},
		{"cte", "WITH t AS (SELECT 1) SELECT * FROM t", nil},
		{"explain", "EXPLAIN SELECT 1", nil},
		{"empty", "   ", errors.ErrInvalidInput},
		{"delete", "DELETE FROM orders", errors.ErrReadOnlyViolation},
		{"update", "update orders set total = 0", errors.ErrReadOnlyViolation},
		{"stacked", "SELECT 1; DROP TABLE orders", errors.ErrReadOnlyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReadOnly(tt.sql)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"orders", "order_items", "_tmp", "T1"} {
		assert.NoError(t, ValidateIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "orders; drop", `"orders"`, "public.orders"} {
		assert.Error(t, ValidateIdentifier(bad), bad)
	}
}

func TestBusinessManagerResolve(t *testing.T) {
	m := newBusinessManager(0, nil)

	_, _, err := m.resolve("")
	assert.True(t, errors.Is(err, errors.ErrUnavailable))

	m.add("sales", nil)
	m.add("inventory", nil)

	name, _, err := m.resolve("")
	require.NoError(t, err)
	assert.Equal(t, "sales", name)

	name, _, err = m.resolve("inventory")
	require.NoError(t, err)
	assert.Equal(t, "inventory", name)

	_, _, err = m.resolve("hr")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	assert.Equal(t, []string{"sales", "inventory"}, m.Databases())
	assert.Equal(t, 1000, m.rowLimit)
}

func TestBusinessManagerRejectsBeforeTouchingDatabase(t *testing.T) {
	m := newBusinessManager(10, nil)
	m.add("sales", nil)

	_, err := m.TableInfo(context.Background(), "sales", "orders; --")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = m.CountRows(context.Background(), "sales", "")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = m.Query(context.Background(), "sales", "DROP TABLE orders", nil)
	assert.True(t, errors.Is(err, errors.ErrReadOnlyViolation))
}

func TestBindNamed(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		params    map[string]interface{}
		want      string
		args      []interface{}
	}{
		{
			name:      "cast survives binding",
			statement: "SELECT id::text FROM users WHERE id = :id",
			params:    map[string]interface{}{"id": 1},
			want:      "SELECT id::text FROM users WHERE id = $1",
			args:      []interface{}{1},
		},
		{
			name:      "cast right after a placeholder",
			statement: "SELECT * FROM orders WHERE created_at > :since::date AND status = :status",
			params:    map[string]interface{}{"since": "2024-01-01", "status": "paid"},
			want:      "SELECT * FROM orders WHERE created_at > $1 ::date AND status = $2",
			args:      []interface{}{"2024-01-01", "paid"},
		},
		{
			name:      "repeated placeholder",
			statement: "SELECT :n::int + :n::int",
			params:    map[string]interface{}{"n": 2},
			want:      "SELECT $1 ::int + $2 ::int",
			args:      []interface{}{2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := bindNamed(tt.statement, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, tt.args, args)
		})
	}

	_, _, err := bindNamed("SELECT * FROM users WHERE id = :id", map[string]interface{}{"other": 1})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
