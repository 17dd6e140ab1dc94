package rbac

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/goccy/go-json"
)

// ErrUnknownKey is returned when a stored permission set names a resource,
// action or capability outside the closed sets.
var ErrUnknownKey = errors.New("rbac: unknown permission key")

// Resource is a business entity type that can be granted actions.
type Resource string

const (
	ResourceProducts     Resource = "productos"
	ResourceCategories   Resource = "categorias"
	ResourceInventory    Resource = "inventario"
	ResourceWarehouses   Resource = "almacenes"
	ResourceCustomers    Resource = "clientes"
	ResourceSuppliers    Resource = "proveedores"
	ResourceSales        Resource = "ventas"
	ResourceInvoices     Resource = "facturas"
	ResourceQuotations   Resource = "cotizaciones"
	ResourcePurchases    Resource = "compras"
	ResourceCashRegister Resource = "caja"
	ResourceTreasury     Resource = "tesoreria"
	ResourceEmployees    Resource = "empleados"
	ResourcePayroll      Resource = "nomina"
	ResourceReports      Resource = "reportes"
	ResourceUsers        Resource = "usuarios"
	ResourceRoles        Resource = "roles"
	ResourceCompany      Resource = "empresa"
	ResourceAuditLog     Resource = "auditoria"
)

var resources = map[Resource]struct{}{
	ResourceProducts:     {},
	ResourceCategories:   {},
	ResourceInventory:    {},
	ResourceWarehouses:   {},
	ResourceCustomers:    {},
	ResourceSuppliers:    {},
	ResourceSales:        {},
	ResourceInvoices:     {},
	ResourceQuotations:   {},
	ResourcePurchases:    {},
	ResourceCashRegister: {},
	ResourceTreasury:     {},
	ResourceEmployees:    {},
	ResourcePayroll:      {},
	ResourceReports:      {},
	ResourceUsers:        {},
	ResourceRoles:        {},
	ResourceCompany:      {},
	ResourceAuditLog:     {},
}

// ParseResource validates a resource name.
func ParseResource(name string) (Resource, error) {
	r := Resource(name)
	if _, ok := resources[r]; !ok {
		return "", fmt.Errorf("%w: resource %q", ErrUnknownKey, name)
	}
	return r, nil
}

// Resources returns all known resources sorted by name.
func Resources() []Resource {
	out := make([]Resource, 0, len(resources))
	for r := range resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Action is one operation on a resource.
type Action uint8

const (
	ActionCreate Action = 1 << iota
	ActionRead
	ActionUpdate
	ActionDelete
	ActionExport
	ActionImport
)

var actionNames = []struct {
	action Action
	name   string
}{
	{ActionCreate, "crear"},
	{ActionRead, "leer"},
	{ActionUpdate, "actualizar"},
	{ActionDelete, "eliminar"},
	{ActionExport, "exportar"},
	{ActionImport, "importar"},
}

func (a Action) String() string {
	for _, n := range actionNames {
		if n.action == a {
			return n.name
		}
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction validates an action name.
func ParseAction(name string) (Action, error) {
	for _, n := range actionNames {
		if n.name == name {
			return n.action, nil
		}
	}
	return 0, fmt.Errorf("%w: action %q", ErrUnknownKey, name)
}

// Actions lists every action in declaration order.
func Actions() []Action {
	out := make([]Action, len(actionNames))
	for i, n := range actionNames {
		out[i] = n.action
	}
	return out
}

// ActionSet is a set of actions stored as a bitmask.
type ActionSet uint8

// AllActions grants every action.
const AllActions = ActionSet(ActionCreate | ActionRead | ActionUpdate | ActionDelete | ActionExport | ActionImport)

// ReadOnly grants read and export.
const ReadOnly = ActionSet(ActionRead | ActionExport)

// NewActionSet builds a set from actions.
func NewActionSet(actions ...Action) ActionSet {
	var s ActionSet
	for _, a := range actions {
		s |= ActionSet(a)
	}
	return s
}

// Has reports whether a is in the set.
func (s ActionSet) Has(a Action) bool {
	return a != 0 && s&ActionSet(a) == ActionSet(a)
}

// Len returns the number of actions in the set.
func (s ActionSet) Len() int {
	return bits.OnesCount8(uint8(s))
}

// Actions lists the set in canonical order.
func (s ActionSet) Actions() []Action {
	out := make([]Action, 0, s.Len())
	for _, n := range actionNames {
		if s.Has(n.action) {
			out = append(out, n.action)
		}
	}
	return out
}

func (s ActionSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, s.Len())
	for _, a := range s.Actions() {
		names = append(names, a.String())
	}
	return json.Marshal(names)
}

func (s *ActionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out ActionSet
	for _, name := range names {
		a, err := ParseAction(name)
		if err != nil {
			return err
		}
		out |= ActionSet(a)
	}
	*s = out
	return nil
}

// ResourceMap maps resources to granted actions. A missing key grants nothing.
type ResourceMap map[Resource]ActionSet

func (m *ResourceMap) UnmarshalJSON(data []byte) error {
	var raw map[string]ActionSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ResourceMap, len(raw))
	for name, set := range raw {
		r, err := ParseResource(name)
		if err != nil {
			return err
		}
		out[r] = set
	}
	*m = out
	return nil
}

// Capability is a named boolean grant outside the resource/action model.
type Capability string

const (
	CapViewCosts         Capability = "verCostes"
	CapEditPrices        Capability = "modificarPrecios"
	CapVoidSales         Capability = "anularVentas"
	CapApprovePurchases  Capability = "aprobarCompras"
	CapManageRoles       Capability = "gestionarRoles"
	CapFinancialReports  Capability = "verReportesFinancieros"
	CapCloseCashRegister Capability = "cerrarCaja"

	// CapMaxDiscount is the numeric ceiling (percentage 0-100).
	CapMaxDiscount Capability = "descuentoMaximo"
)

var capabilities = map[Capability]struct{}{
	CapViewCosts:         {},
	CapEditPrices:        {},
	CapVoidSales:         {},
	CapApprovePurchases:  {},
	CapManageRoles:       {},
	CapFinancialReports:  {},
	CapCloseCashRegister: {},
	CapMaxDiscount:       {},
}

// ParseCapability validates a capability name.
func ParseCapability(name string) (Capability, error) {
	c := Capability(name)
	if _, ok := capabilities[c]; !ok {
		return "", fmt.Errorf("%w: capability %q", ErrUnknownKey, name)
	}
	return c, nil
}

// Capabilities lists every special capability, sorted by name.
func Capabilities() []Capability {
	out := make([]Capability, 0, len(capabilities))
	for c := range capabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Specials holds boolean capabilities and the numeric discount ceiling.
// A nil MaxDiscount means "not set at this layer".
type Specials struct {
	Flags       map[Capability]bool
	MaxDiscount *float64
}

func (s Specials) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Flags)+1)
	for c, v := range s.Flags {
		out[string(c)] = v
	}
	if s.MaxDiscount != nil {
		out[string(CapMaxDiscount)] = *s.MaxDiscount
	}
	return json.Marshal(out)
}

func (s *Specials) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Specials{Flags: make(map[Capability]bool, len(raw))}
	for name, value := range raw {
		c, err := ParseCapability(name)
		if err != nil {
			return err
		}
		if c == CapMaxDiscount {
			var pct float64
			if err := json.Unmarshal(value, &pct); err != nil {
				return fmt.Errorf("rbac: %s must be a number: %w", CapMaxDiscount, err)
			}
			if pct < 0 || pct > 100 {
				return fmt.Errorf("rbac: %s out of range: %v", CapMaxDiscount, pct)
			}
			out.MaxDiscount = &pct
			continue
		}
		var flag bool
		if err := json.Unmarshal(value, &flag); err != nil {
			return fmt.Errorf("rbac: %s must be a boolean: %w", c, err)
		}
		out.Flags[c] = flag
	}
	*s = out
	return nil
}

// PermissionSet is the resource map plus special capabilities.
type PermissionSet struct {
	Resources ResourceMap `json:"resources"`
	Special   Specials    `json:"special"`
}

// UnmarshalJSON accepts only the resources and special members.
func (p *PermissionSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if key != "resources" && key != "special" {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	}
	type plain PermissionSet
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*p = PermissionSet(out)
	return nil
}

// ParsePermissionSet decodes a stored permission set, rejecting unknown keys.
func ParsePermissionSet(data []byte) (PermissionSet, error) {
	var set PermissionSet
	if len(data) == 0 {
		return set, nil
	}
	if err := json.Unmarshal(data, &set); err != nil {
		return PermissionSet{}, err
	}
	return set, nil
}

// Clone returns a deep copy.
func (p PermissionSet) Clone() PermissionSet {
	out := PermissionSet{
		Resources: make(ResourceMap, len(p.Resources)),
		Special:   Specials{Flags: make(map[Capability]bool, len(p.Special.Flags))},
	}
	for r, s := range p.Resources {
		out.Resources[r] = s
	}
	for c, v := range p.Special.Flags {
		out.Special.Flags[c] = v
	}
	if p.Special.MaxDiscount != nil {
		pct := *p.Special.MaxDiscount
		out.Special.MaxDiscount = &pct
	}
	return out
}
