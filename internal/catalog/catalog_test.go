package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogRoles(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "manager", "sales", "warehouse", "accountant", "employee"}, c.Roles())
	for _, name := range c.Roles() {
		pages := c.AllowedPages(name)
		assert.Contains(t, pages, "/dashboard", "role %s", name)
		assert.Contains(t, pages, "/profile", "role %s", name)
	}
}

func TestSalesCanViewButNotCreateCustomers(t *testing.T) {
	c := MustDefault()
	perms := c.Permissions("sales")
	assert.Contains(t, perms, "customers:view")
	assert.NotContains(t, perms, "customers:create")
}

func TestEmployeeLacksFinancials(t *testing.T) {
	c := MustDefault()
	assert.NotContains(t, c.AllowedPages("employee"), "/financials")
}

func TestUnknownRoleIsEmpty(t *testing.T) {
	c := MustDefault()
	assert.Empty(t, c.AllowedPages("ghost"))
	assert.Empty(t, c.Navigation("ghost"))
	assert.Empty(t, c.Permissions("ghost"))
	assert.NotNil(t, c.AllowedPages("ghost"))
}

func TestNavigationKeepsCatalogOrder(t *testing.T) {
	c := MustDefault()
	nav := c.Navigation("sales")
	require.Len(t, nav, 4)
	assert.Equal(t, "/dashboard", nav[0].Href)
	assert.Equal(t, IconDashboard, nav[0].Icon)
	assert.Equal(t, "/orders", nav[3].Href)
	assert.Equal(t, "orders:view", nav[3].Permission)
}

func TestNavigationReturnsCopy(t *testing.T) {
	c := MustDefault()
	nav := c.Navigation("sales")
	nav[0].Href = "/tampered"
	assert.Equal(t, "/dashboard", c.Navigation("sales")[0].Href)
}

func TestRequiredPermission(t *testing.T) {
	c := MustDefault()
	assert.Equal(t, "financials:view", c.RequiredPermission("/financials"))
	assert.Equal(t, "customers:view", c.RequiredPermission("/customers/42/edit"))
	assert.Equal(t, "", c.RequiredPermission("/dashboard"))
	assert.Equal(t, "", c.RequiredPermission("/nowhere"))
}

func TestParseRejectsMalformedPermission(t *testing.T) {
	_, err := Parse([]byte(`
roles:
  - name: broken
    permissions: ["customers-view"]
    allowed_pages: [/dashboard]
`))
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseRejectsRoleWithoutPages(t *testing.T) {
	_, err := Parse([]byte(`
roles:
  - name: empty
    permissions: ["customers:view"]
`))
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseRejectsNavigationPermissionOutsideRole(t *testing.T) {
	_, err := Parse([]byte(`
roles:
  - name: viewer
    permissions: ["customers:view"]
    allowed_pages: [/customers]
    navigation:
      - {title: Orders, href: /orders, icon: shopping-cart, permission: "orders:view"}
`))
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseRejectsDuplicateRole(t *testing.T) {
	_, err := Parse([]byte(`
roles:
  - name: a
    allowed_pages: [/dashboard]
  - name: a
    allowed_pages: [/dashboard]
`))
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseDeduplicatesPermissions(t *testing.T) {
	c, err := Parse([]byte(`
roles:
  - name: a
    permissions: ["tasks:view", "tasks:view", "tasks:update"]
    allowed_pages: [/tasks]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks:view", "tasks:update"}, c.Permissions("a"))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
roles:
  - name: auditor
    permissions: ["reports:view"]
    allowed_pages: [/reports]
    navigation:
      - {title: Reports, href: /reports, icon: bar-chart, permission: "reports:view"}
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"auditor"}, c.Roles())
	assert.Equal(t, IconBarChart, c.Navigation("auditor")[0].Icon)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestParseIconFallsBackToPackage(t *testing.T) {
	assert.Equal(t, IconTruck, ParseIcon("Truck"))
	assert.Equal(t, IconPackage, ParseIcon("rocket"))
	assert.Equal(t, IconPackage, ParseIcon(""))
	assert.Equal(t, "Package", Icon(999).Component())
}

func TestNavItemJSONUsesComponentName(t *testing.T) {
	data, err := json.Marshal(NavItem{Title: "Kho", Href: "/inventory", Icon: IconWarehouse})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Kho","href":"/inventory","icon":"Warehouse"}`, string(data))
}

func TestIconTextRoundTrip(t *testing.T) {
	for icon := IconPackage; icon <= IconUser; icon++ {
		text, err := icon.MarshalText()
		require.NoError(t, err)
		var back Icon
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, icon, back, string(text))
	}
	var fromTag Icon
	require.NoError(t, fromTag.UnmarshalText([]byte("shopping-cart")))
	assert.Equal(t, IconShoppingCart, fromTag)
}
