package rbac

import (
	"fmt"
	"sort"
)

// Module is a functional area of the product gated as a whole.
type Module string

const (
	ModuleInventory  Module = "inventario"
	ModuleSales      Module = "ventas"
	ModulePurchasing Module = "compras"
	ModuleHR         Module = "rrhh"
	ModuleTreasury   Module = "tesoreria"
	ModulePOS        Module = "pos"
	ModuleReports    Module = "reportes"
	ModuleSettings   Module = "configuracion"
)

var moduleResources = map[Module][]Resource{
	ModuleInventory:  {ResourceProducts, ResourceCategories, ResourceInventory, ResourceWarehouses},
	ModuleSales:      {ResourceCustomers, ResourceSales, ResourceInvoices, ResourceQuotations},
	ModulePurchasing: {ResourceSuppliers, ResourcePurchases},
	ModuleHR:         {ResourceEmployees, ResourcePayroll},
	ModuleTreasury:   {ResourceTreasury},
	ModulePOS:        {ResourceCashRegister},
	ModuleReports:    {ResourceReports},
	ModuleSettings:   {ResourceUsers, ResourceRoles, ResourceCompany, ResourceAuditLog},
}

// ParseModule validates a module name.
func ParseModule(name string) (Module, error) {
	m := Module(name)
	if _, ok := moduleResources[m]; !ok {
		return "", fmt.Errorf("%w: module %q", ErrUnknownKey, name)
	}
	return m, nil
}

// Modules lists every module, sorted by name.
func Modules() []Module {
	out := make([]Module, 0, len(moduleResources))
	for m := range moduleResources {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ModuleResources lists the resources belonging to a module.
func ModuleResources(m Module) []Resource {
	return append([]Resource(nil), moduleResources[m]...)
}

// HasModuleAccess reports whether the role can read at least one resource of the module.
func HasModuleAccess(role Role, m Module) bool {
	return EffectivePermissions(role).Opens(m)
}

// Opens reports whether the set reads at least one resource of the module.
func (p PermissionSet) Opens(m Module) bool {
	for _, r := range moduleResources[m] {
		if p.Allows(r, ActionRead) {
			return true
		}
	}
	return false
}
