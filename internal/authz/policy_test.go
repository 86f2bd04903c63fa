package authz

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/impetus-erp/impetus-erp/internal/shared"
)

func TestComprasEditsPurchaseLineCommercialFieldsOnly(t *testing.T) {
	policy := Default()
	actor := shared.Actor{ID: 7, Roles: []string{shared.RoleCompras}}

	require.True(t, policy.CanEdit(actor, EntityPurchaseLine, "precio_unitario"))
	require.True(t, policy.CanEdit(actor, EntityPurchaseLine, "cantidad_disponible"))
	require.True(t, policy.CanEdit(actor, EntityPurchaseLine, "proveedor"))
	require.False(t, policy.CanEdit(actor, EntityPurchaseLine, "cantidad_requerida"))
	require.False(t, policy.CanEdit(actor, EntityPurchaseLine, "codigo"))
	require.False(t, policy.CanEdit(actor, EntityApprovalLine, "estado_aprobacion"))
}

func TestFinanzasDecidesButDoesNotSchedule(t *testing.T) {
	policy := Default()
	finanzas := shared.Actor{ID: 3, Roles: []string{shared.RoleFinanzas}}

	require.True(t, policy.CanEdit(finanzas, EntityApprovalLine, "estado_aprobacion"))
	require.True(t, policy.CanEdit(finanzas, EntityFinanceLine, "pagado"))
	require.False(t, policy.CanEdit(finanzas, EntityFinanceLine, "decision"))
	require.False(t, policy.CanEdit(finanzas, EntityFinanceLine, "scheduled_date"))
}

func TestAdminEditsEverything(t *testing.T) {
	policy := Default()
	admin := shared.Actor{ID: 1, Roles: []string{shared.RoleAdmin}}

	require.True(t, policy.CanEdit(admin, EntityFinanceLine, "decision"))
	require.True(t, policy.CanEdit(admin, EntityBom, "estado"))
	require.True(t, policy.EditableFields(admin, EntityFactura).Has("precio"))
}

func TestRolesUnion(t *testing.T) {
	policy := Default()
	actor := shared.Actor{ID: 9, Roles: []string{shared.RolePaw, shared.RoleFinanzas}}

	fields := policy.EditableFields(actor, EntityFactura)
	require.True(t, fields.Has("lugar_entrega"))
	require.True(t, fields.Has("numero_factura"))
	require.False(t, fields.Has("inexistente"))
}

func TestNoRolesGetsNothing(t *testing.T) {
	policy := Default()
	actor := shared.Actor{ID: 2}

	require.True(t, policy.EditableFields(actor, EntityPurchaseLine).Empty())
	require.False(t, policy.CanEdit(actor, EntityBom, "comentarios"))
}

func TestAllowFieldsChecksEveryField(t *testing.T) {
	mw := Middleware{Policy: Default()}
	actor := shared.Actor{ID: 4, Roles: []string{shared.RoleCompras}}
	req := httptest.NewRequest("PATCH", "/compras/solicitudes/1/lineas/1", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), actor))

	require.True(t, mw.AllowFields(req, EntityPurchaseLine, "precio_unitario", "proveedor"))
	require.False(t, mw.AllowFields(req, EntityPurchaseLine, "precio_unitario", "cantidad_requerida"))
	require.True(t, mw.AllowFields(req, EntityPurchaseLine))
}
