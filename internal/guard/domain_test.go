package guard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePermissions(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{name: "nil", raw: nil, want: []string{}},
		{name: "native", raw: []string{"customers:view", " ", "orders:view"}, want: []string{"customers:view", "orders:view"}},
		{name: "any list", raw: []any{"customers:view", 3, "orders:view"}, want: []string{"customers:view", "orders:view"}},
		{name: "json string", raw: `["customers:view"]`, want: []string{"customers:view"}},
		{name: "bytes", raw: []byte(`["customers:view"]`), want: []string{"customers:view"}},
		{name: "raw message", raw: json.RawMessage(`["customers:view"]`), want: []string{"customers:view"}},
		{name: "double encoded", raw: `"[\"customers:view\"]"`, want: []string{"customers:view"}},
		{name: "malformed", raw: `{bad`, want: []string{}},
		{name: "object", raw: `{"a":1}`, want: []string{}},
		{name: "empty string", raw: "", want: []string{}},
		{name: "number", raw: 42, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParsePermissions(tc.raw))
		})
	}
}

func TestToUserMergesRoleAndGrantedPermissions(t *testing.T) {
	rec := &EmployeeRecord{
		ID:                 "u-1",
		RolePermissions:    `["orders:view","customers:view"]`,
		GrantedPermissions: []string{"customers:view", "products:view"},
		IsActive:           true,
	}
	first := rec.toUser()
	second := rec.toUser()
	assert.Equal(t, []string{"orders:view", "customers:view", "products:view"}, first.Permissions)
	assert.Equal(t, first.Permissions, second.Permissions)
}
