// Package authz holds the declarative field-level edit policy. Instead
// of per-entity branching on group names, every editing surface asks
// one table which fields the acting roles may touch.
package authz

import (
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// Entity identifies an editable record type.
type Entity string

const (
	EntityQuotation      Entity = "quotation"
	EntityPaw            Entity = "paw"
	EntityWorkOrder      Entity = "workorder"
	EntityBom            Entity = "bom"
	EntityBomItem        Entity = "bom_item"
	EntityPurchaseReq    Entity = "purchase_request"
	EntityPurchaseLine   Entity = "purchase_line"
	EntityApprovalLine   Entity = "purchase_approval_line"
	EntityFinanceLine    Entity = "finance_approval_line"
	EntityReceptionLine  Entity = "inventory_reception_line"
	EntityDelivery       Entity = "workshop_delivery"
	EntityDeliveryLine   Entity = "workshop_delivery_line"
	EntityFactura        Entity = "factura"
)

// FieldSet is a set of editable field names. The zero value is empty.
type FieldSet struct {
	all    bool
	fields map[string]bool
}

// NewFieldSet builds a FieldSet from field names.
func NewFieldSet(names ...string) FieldSet {
	fields := make(map[string]bool, len(names))
	for _, n := range names {
		fields[n] = true
	}
	return FieldSet{fields: fields}
}

// AllFields marks every field editable.
func AllFields() FieldSet {
	return FieldSet{all: true}
}

// Has reports whether the field is in the set.
func (s FieldSet) Has(field string) bool {
	return s.all || s.fields[field]
}

// Empty reports whether the set grants nothing.
func (s FieldSet) Empty() bool {
	return !s.all && len(s.fields) == 0
}

func (s FieldSet) union(other FieldSet) FieldSet {
	if s.all || other.all {
		return AllFields()
	}
	merged := make(map[string]bool, len(s.fields)+len(other.fields))
	for f := range s.fields {
		merged[f] = true
	}
	for f := range other.fields {
		merged[f] = true
	}
	return FieldSet{fields: merged}
}

// Policy maps role → entity → editable fields.
type Policy struct {
	rules map[string]map[Entity]FieldSet
}

// EditableFields returns the union of fields the actor's roles may
// edit on the entity. Admins may edit everything.
func (p *Policy) EditableFields(actor shared.Actor, entity Entity) FieldSet {
	if actor.IsAdmin() {
		return AllFields()
	}
	granted := FieldSet{}
	for _, role := range actor.Roles {
		if byEntity, ok := p.rules[role]; ok {
			granted = granted.union(byEntity[entity])
		}
	}
	return granted
}

// CanEdit reports whether the actor may edit one field of the entity.
func (p *Policy) CanEdit(actor shared.Actor, entity Entity, field string) bool {
	return p.EditableFields(actor, entity).Has(field)
}

// Default returns the policy table for the workshop departments. Rules
// follow the newest revision of each department's editing surface;
// superseded historical variants are intentionally not represented.
func Default() *Policy {
	return &Policy{rules: map[string]map[Entity]FieldSet{
		shared.RolePaw: {
			EntityQuotation: AllFields(),
			EntityPaw:       AllFields(),
			EntityWorkOrder: NewFieldSet("titulo", "descripcion", "equipo", "serial", "ubicacion", "prioridad", "estado", "asignado_a", "visibilidad"),
			EntityFactura:   NewFieldSet("lugar_entrega", "lugar_servicio", "numero_servicio", "item_factura", "precio"),
		},
		shared.RoleTaller: {
			// BOM edits are additionally frozen by the service once the
			// BOM reaches SOLICITUD.
			EntityBom:       NewFieldSet("template", "comentarios"),
			EntityBomItem:   NewFieldSet("plano", "codigo", "descripcion", "unidad", "cantidad_solicitada", "observaciones"),
			EntityWorkOrder: NewFieldSet("estado", "etapa_taller", "comentario_taller"),
		},
		shared.RoleCompras: {
			EntityPurchaseReq:   NewFieldSet("estado", "tipo_pago"),
			EntityPurchaseLine:  NewFieldSet("cantidad_disponible", "tipo_pago", "proveedor", "precio_unitario", "observaciones_compras"),
			EntityReceptionLine: NewFieldSet("cantidad_recibida", "fecha_llegada", "estado", "observacion_inventario"),
		},
		shared.RoleFinanzas: {
			EntityApprovalLine: NewFieldSet("estado_aprobacion", "observacion_finanzas"),
			// Finance executes payments; the decision fields belong to
			// the finance administrator (ADMIN).
			EntityFinanceLine: NewFieldSet("pagado"),
			EntityFactura:     NewFieldSet("numero_factura", "fecha_vencimiento", "fecha_radicacion", "tipo_pago", "estado", "precio"),
		},
		shared.RoleInventario: {
			EntityReceptionLine: NewFieldSet("cantidad_recibida", "fecha_llegada", "estado", "observacion_inventario"),
		},
		shared.RoleEntregaTaller: {
			EntityDelivery:     NewFieldSet("comentarios"),
			EntityDeliveryLine: NewFieldSet("cantidad_entregada"),
		},
	}}
}
