// Package schema compiles per-tenant accessors for business entities.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

// Registry failures.
var (
	ErrNoTenantStore  = errors.New("schema: tenant has no business store")
	ErrUnknownEntity  = errors.New("schema: unknown entity")
	ErrRecordNotFound = errors.New("schema: record not found")
)

// Entity describes a table in a tenant store.
type Entity struct {
	Name         string
	Table        string
	IDColumn     string
	TenantColumn string
	Columns      []string
	Resource     rbac.Resource
	// Guarded columns are only returned to callers holding the capability.
	Guarded map[string]rbac.Capability
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func (e Entity) validate() error {
	if e.Name == "" {
		return errors.New("schema: entity name required")
	}
	if _, err := rbac.ParseResource(string(e.Resource)); err != nil {
		return fmt.Errorf("schema: entity %s: %w", e.Name, err)
	}
	idents := append([]string{e.Table, e.IDColumn, e.TenantColumn}, e.Columns...)
	for _, ident := range idents {
		if !identPattern.MatchString(ident) {
			return fmt.Errorf("schema: entity %s: invalid identifier %q", e.Name, ident)
		}
	}
	for col := range e.Guarded {
		if !e.hasColumn(col) {
			return fmt.Errorf("schema: entity %s: guarded column %q not selected", e.Name, col)
		}
	}
	return nil
}

func (e Entity) hasColumn(col string) bool {
	for _, c := range e.selected() {
		if c == col {
			return true
		}
	}
	return false
}

// selected lists the projected columns, id and tenant column first.
func (e Entity) selected() []string {
	cols := []string{e.IDColumn, e.TenantColumn}
	for _, c := range e.Columns {
		if c != e.IDColumn && c != e.TenantColumn {
			cols = append(cols, c)
		}
	}
	return cols
}

func (e Entity) findByIDSQL() string {
	cols := e.selected()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(quoted, ", "),
		pgx.Identifier{e.Table}.Sanitize(),
		pgx.Identifier{e.IDColumn}.Sanitize())
}

// DefaultEntities are the business tables every tenant store carries.
func DefaultEntities() []Entity {
	return []Entity{
		{
			Name: "productos", Table: "productos", IDColumn: "id", TenantColumn: "empresa_id",
			Columns:  []string{"codigo", "nombre", "precio_venta", "costo", "stock", "activo", "updated_at"},
			Resource: rbac.ResourceProducts,
			Guarded:  map[string]rbac.Capability{"costo": rbac.CapViewCosts},
		},
		{
			Name: "clientes", Table: "clientes", IDColumn: "id", TenantColumn: "empresa_id",
			Columns:  []string{"nombre", "documento", "email", "telefono", "activo"},
			Resource: rbac.ResourceCustomers,
		},
		{
			Name: "proveedores", Table: "proveedores", IDColumn: "id", TenantColumn: "empresa_id",
			Columns:  []string{"nombre", "documento", "email", "telefono", "activo"},
			Resource: rbac.ResourceSuppliers,
		},
		{
			Name: "almacenes", Table: "almacenes", IDColumn: "id", TenantColumn: "empresa_id",
			Columns:  []string{"nombre", "direccion", "activo"},
			Resource: rbac.ResourceWarehouses,
		},
		{
			Name: "ventas", Table: "ventas", IDColumn: "id", TenantColumn: "empresa_id",
			Columns:  []string{"numero", "cliente_id", "total", "costo_total", "estado", "fecha"},
			Resource: rbac.ResourceSales,
			Guarded:  map[string]rbac.Capability{"costo_total": rbac.CapViewCosts},
		},
		{
			Name: "facturas", Table: "facturas", IDColumn: "id", TenantColumn: "empresa_id",
			Columns:  []string{"numero", "venta_id", "total", "estado", "emitida_en"},
			Resource: rbac.ResourceInvoices,
		},
		{
			Name: "compras", Table: "compras", IDColumn: "id", TenantColumn: "empresa_id",
			Columns:  []string{"numero", "proveedor_id", "total", "estado", "fecha"},
			Resource: rbac.ResourcePurchases,
		},
		{
			Name: "empleados", Table: "empleados", IDColumn: "id", TenantColumn: "empresa_id",
			Columns:  []string{"nombre", "documento", "cargo", "salario", "activo"},
			Resource: rbac.ResourceEmployees,
			Guarded:  map[string]rbac.Capability{"salario": rbac.CapFinancialReports},
		},
	}
}
