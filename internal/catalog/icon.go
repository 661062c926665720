package catalog

import "strings"

// Icon identifies the glyph rendered next to a navigation entry.
type Icon int

// Known icons. IconPackage doubles as the fallback for unknown names.
const (
	IconPackage Icon = iota
	IconDashboard
	IconUsers
	IconWarehouse
	IconShoppingCart
	IconFolder
	IconCheckSquare
	IconTruck
	IconDollarSign
	IconUserCog
	IconShield
	IconBarChart
	IconSettings
	IconUser
)

// ParseIcon maps a catalog icon name to its Icon. Names that are not known
// resolve to IconPackage.
func ParseIcon(name string) Icon {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dashboard":
		return IconDashboard
	case "users":
		return IconUsers
	case "package":
		return IconPackage
	case "warehouse":
		return IconWarehouse
	case "shopping-cart":
		return IconShoppingCart
	case "folder":
		return IconFolder
	case "check-square":
		return IconCheckSquare
	case "truck":
		return IconTruck
	case "dollar-sign":
		return IconDollarSign
	case "user-cog":
		return IconUserCog
	case "shield":
		return IconShield
	case "bar-chart":
		return IconBarChart
	case "settings":
		return IconSettings
	case "user":
		return IconUser
	default:
		return IconPackage
	}
}

// Component returns the icon component name the front end renders.
func (i Icon) Component() string {
	switch i {
	case IconDashboard:
		return "LayoutDashboard"
	case IconUsers:
		return "Users"
	case IconWarehouse:
		return "Warehouse"
	case IconShoppingCart:
		return "ShoppingCart"
	case IconFolder:
		return "FolderKanban"
	case IconCheckSquare:
		return "CheckSquare"
	case IconTruck:
		return "Truck"
	case IconDollarSign:
		return "DollarSign"
	case IconUserCog:
		return "UserCog"
	case IconShield:
		return "Shield"
	case IconBarChart:
		return "BarChart3"
	case IconSettings:
		return "Settings"
	case IconUser:
		return "User"
	case IconPackage:
		return "Package"
	default:
		return "Package"
	}
}

// MarshalText encodes the icon as its component name.
func (i Icon) MarshalText() ([]byte, error) {
	return []byte(i.Component()), nil
}

// UnmarshalText accepts either a component name or a catalog icon name.
func (i *Icon) UnmarshalText(text []byte) error {
	s := string(text)
	for icon := IconPackage; icon <= IconUser; icon++ {
		if strings.EqualFold(icon.Component(), s) {
			*i = icon
			return nil
		}
	}
	*i = ParseIcon(s)
	return nil
}
