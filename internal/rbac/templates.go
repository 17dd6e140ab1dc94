package rbac

// Template returns a copy of the built-in permission set for a system role.
// NoBase and unknown roles yield an empty set.
func Template(role SystemRole) PermissionSet {
	tpl, ok := templates[role]
	if !ok {
		return PermissionSet{Resources: ResourceMap{}, Special: Specials{Flags: map[Capability]bool{}}}
	}
	return tpl.Clone()
}

// TemplateByCode looks up a system template by its wire code.
func TemplateByCode(code string) (PermissionSet, bool) {
	role, ok := ParseSystemRole(code)
	if !ok {
		return PermissionSet{}, false
	}
	return Template(role), true
}

func pct(v float64) *float64 { return &v }

var (
	crud      = NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete)
	createRW  = NewActionSet(ActionCreate, ActionRead, ActionUpdate)
	readWrite = NewActionSet(ActionRead, ActionUpdate)
	readOnly  = NewActionSet(ActionRead)
)

func everything() ResourceMap {
	out := make(ResourceMap, len(resources))
	for r := range resources {
		out[r] = AllActions
	}
	return out
}

var templates = map[SystemRole]PermissionSet{
	RoleSuperadmin: {
		Resources: everything(),
		Special: Specials{
			Flags: map[Capability]bool{
				CapViewCosts: true, CapEditPrices: true, CapVoidSales: true, CapApprovePurchases: true,
				CapManageRoles: true, CapFinancialReports: true, CapCloseCashRegister: true,
			},
			MaxDiscount: pct(100),
		},
	},
	RoleAdmin: {
		Resources: everything(),
		Special: Specials{
			Flags: map[Capability]bool{
				CapViewCosts: true, CapEditPrices: true, CapVoidSales: true, CapApprovePurchases: true,
				CapManageRoles: true, CapFinancialReports: true, CapCloseCashRegister: true,
			},
			MaxDiscount: pct(100),
		},
	},
	RoleGerente: {
		Resources: ResourceMap{
			ResourceProducts:     AllActions,
			ResourceCategories:   AllActions,
			ResourceInventory:    AllActions,
			ResourceWarehouses:   crud,
			ResourceCustomers:    AllActions,
			ResourceSuppliers:    AllActions,
			ResourceSales:        AllActions,
			ResourceInvoices:     AllActions,
			ResourceQuotations:   AllActions,
			ResourcePurchases:    AllActions,
			ResourceCashRegister: crud,
			ResourceTreasury:     ReadOnly,
			ResourceEmployees:    ReadOnly,
			ResourceReports:      ReadOnly,
			ResourceUsers:        createRW,
			ResourceRoles:        readOnly,
			ResourceCompany:      readOnly,
		},
		Special: Specials{
			Flags: map[Capability]bool{
				CapViewCosts: true, CapEditPrices: true, CapVoidSales: true, CapApprovePurchases: true,
				CapFinancialReports: true, CapCloseCashRegister: true,
			},
			MaxDiscount: pct(30),
		},
	},
	RoleContador: {
		Resources: ResourceMap{
			ResourceProducts:  readOnly,
			ResourceCustomers: ReadOnly,
			ResourceSuppliers: ReadOnly,
			ResourceSales:     ReadOnly,
			ResourceInvoices:  NewActionSet(ActionRead, ActionUpdate, ActionExport),
			ResourcePurchases: ReadOnly,
			ResourceTreasury:  AllActions,
			ResourceEmployees: ReadOnly,
			ResourcePayroll:   AllActions,
			ResourceReports:   ReadOnly,
			ResourceCompany:   readOnly,
		},
		Special: Specials{
			Flags: map[Capability]bool{CapViewCosts: true, CapFinancialReports: true},
		},
	},
	RoleVendedor: {
		Resources: ResourceMap{
			ResourceProducts:   readOnly,
			ResourceCategories: readOnly,
			ResourceInventory:  readOnly,
			ResourceCustomers:  createRW,
			ResourceSales:      createRW,
			ResourceInvoices:   NewActionSet(ActionCreate, ActionRead),
			ResourceQuotations: crud,
		},
		Special: Specials{
			Flags:       map[Capability]bool{CapViewCosts: false},
			MaxDiscount: pct(5),
		},
	},
	RoleCajero: {
		Resources: ResourceMap{
			ResourceProducts:     readOnly,
			ResourceCustomers:    NewActionSet(ActionCreate, ActionRead),
			ResourceSales:        NewActionSet(ActionCreate, ActionRead),
			ResourceInvoices:     NewActionSet(ActionCreate, ActionRead),
			ResourceCashRegister: createRW,
		},
		Special: Specials{
			Flags: map[Capability]bool{CapCloseCashRegister: true},
		},
	},
	RoleAlmacenero: {
		Resources: ResourceMap{
			ResourceProducts:   readWrite,
			ResourceCategories: readOnly,
			ResourceInventory:  AllActions,
			ResourceWarehouses: readWrite,
			ResourceSuppliers:  readOnly,
			ResourcePurchases:  readOnly,
		},
		Special: Specials{Flags: map[Capability]bool{}},
	},
	RoleConsulta: {
		Resources: ResourceMap{
			ResourceProducts:   readOnly,
			ResourceCategories: readOnly,
			ResourceInventory:  readOnly,
			ResourceCustomers:  readOnly,
			ResourceSuppliers:  readOnly,
			ResourceSales:      readOnly,
			ResourceReports:    readOnly,
		},
		Special: Specials{Flags: map[Capability]bool{}},
	},
}
