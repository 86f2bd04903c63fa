package bom

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/impetus-erp/impetus-erp/internal/money"
	"github.com/impetus-erp/impetus-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Bom, []BomItem, error)
	GetByWorkOrder(ctx context.Context, workOrderID int64) (Bom, []BomItem, error)
	GetTemplate(ctx context.Context, id int64) (Template, []TemplateItem, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]Template, error)
}

// PurchasingPort receives the BOM snapshot when it is sent to
// inventory and creates or refreshes the purchase request.
type PurchasingPort interface {
	SyncFromBom(ctx context.Context, actor shared.Actor, input SyncInput) (int64, error)
}

// SyncInput is the BOM snapshot handed to purchasing.
type SyncInput struct {
	BomID       int64
	WorkOrderID int64
	Items       []SyncItem
}

// SyncItem is one BOM row in the snapshot. Lines are matched by
// (codigo, descripcion, plano) on refresh.
type SyncItem struct {
	BomItemID          int64
	Plano              string
	Codigo             string
	Descripcion        string
	Unidad             string
	CantidadSolicitada decimal.Decimal
	Observaciones      string
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages BOM capture and the inventory request trigger.
type Service struct {
	repo       RepositoryPort
	purchasing PurchasingPort
	audit      AuditPort
}

// NewService constructs bom service.
func NewService(repo RepositoryPort, purchasing PurchasingPort, audit AuditPort) *Service {
	return &Service{repo: repo, purchasing: purchasing, audit: audit}
}

// ItemInput describes one material row. Quantities arrive as text and
// parse with the loose rules used for money.
type ItemInput struct {
	Plano              string
	Codigo             string
	Descripcion        string `validate:"required"`
	Unidad             string
	CantidadEstandar   string
	CantidadSolicitada string
	Observaciones      string
}

// Create opens a BOM for a work order, optionally seeded from a
// template. One BOM per work order.
func (s *Service) Create(ctx context.Context, actor shared.Actor, workOrderID int64, templateID *int64, comentarios string) (Bom, error) {
	if workOrderID == 0 {
		return Bom{}, fmt.Errorf("%w: orden de trabajo requerida", ErrValidation)
	}
	b := Bom{
		WorkOrderID: workOrderID,
		TemplateID:  templateID,
		Estado:      StatusBorrador,
		Comentarios: comentarios,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateBom(ctx, b)
		if err != nil {
			return err
		}
		b.ID = id
		return nil
	})
	if err != nil {
		return Bom{}, err
	}
	if templateID != nil {
		if err := s.LoadFromTemplate(ctx, actor, b.ID, *templateID); err != nil {
			return Bom{}, err
		}
	}
	s.recordAudit(ctx, actor, "BOM_CREAR", b.ID, map[string]any{"orden": workOrderID})
	return b, nil
}

// LoadFromTemplate seeds the BOM from a template, only while the BOM
// has no items.
func (s *Service) LoadFromTemplate(ctx context.Context, actor shared.Actor, bomID, templateID int64) error {
	b, items, err := s.repo.Get(ctx, bomID)
	if err != nil {
		return err
	}
	if b.Estado != StatusBorrador {
		return fmt.Errorf("%w: BOM en solicitud", ErrInvalidState)
	}
	if len(items) > 0 {
		return fmt.Errorf("%w: el BOM ya tiene items", ErrInvalidState)
	}
	tpl, tplItems, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, ti := range tplItems {
			if err := tx.InsertItem(ctx, BomItem{
				BomID:              bomID,
				Plano:              ti.Plano,
				Codigo:             ti.Codigo,
				Descripcion:        ti.Descripcion,
				Unidad:             ti.Unidad,
				CantidadEstandar:   ti.CantidadEstandar,
				CantidadSolicitada: ti.CantidadEstandar,
				Observaciones:      ti.Observaciones,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "BOM_PLANTILLA", bomID, map[string]any{"plantilla": tpl.Nombre, "items": len(tplItems)})
	return nil
}

// AddItem appends a material row while the BOM is open.
func (s *Service) AddItem(ctx context.Context, actor shared.Actor, bomID int64, input ItemInput) (BomItem, error) {
	b, _, err := s.repo.Get(ctx, bomID)
	if err != nil {
		return BomItem{}, err
	}
	if b.Estado != StatusBorrador {
		return BomItem{}, fmt.Errorf("%w: BOM en solicitud", ErrInvalidState)
	}
	item, err := buildItem(bomID, input)
	if err != nil {
		return BomItem{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return BomItem{}, err
	}
	s.recordAudit(ctx, actor, "BOM_ITEM_AGREGAR", bomID, map[string]any{"codigo": item.Codigo})
	return item, nil
}

// UpdateItem mutates a material row while the BOM is open.
func (s *Service) UpdateItem(ctx context.Context, actor shared.Actor, bomID, itemID int64, input ItemInput) error {
	b, items, err := s.repo.Get(ctx, bomID)
	if err != nil {
		return err
	}
	if b.Estado != StatusBorrador {
		return fmt.Errorf("%w: BOM en solicitud", ErrInvalidState)
	}
	var existing *BomItem
	for i := range items {
		if items[i].ID == itemID {
			existing = &items[i]
			break
		}
	}
	if existing == nil {
		return ErrNotFound
	}
	updated, err := buildItem(bomID, input)
	if err != nil {
		return err
	}
	updated.ID = itemID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItem(ctx, updated)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "BOM_ITEM_EDITAR", bomID, map[string]any{"item": itemID})
	return nil
}

// RemoveItem deletes a material row while the BOM is open.
func (s *Service) RemoveItem(ctx context.Context, actor shared.Actor, bomID, itemID int64) error {
	b, _, err := s.repo.Get(ctx, bomID)
	if err != nil {
		return err
	}
	if b.Estado != StatusBorrador {
		return fmt.Errorf("%w: BOM en solicitud", ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "BOM_ITEM_ELIMINAR", bomID, map[string]any{"item": itemID})
	return nil
}

// UpdateComentarios edits the header comment while the BOM is open.
func (s *Service) UpdateComentarios(ctx context.Context, actor shared.Actor, bomID int64, comentarios string) error {
	b, _, err := s.repo.Get(ctx, bomID)
	if err != nil {
		return err
	}
	if b.Estado != StatusBorrador {
		return fmt.Errorf("%w: BOM en solicitud", ErrInvalidState)
	}
	b.Comentarios = comentarios
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateBom(ctx, b)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "BOM_EDITAR", bomID, nil)
	return nil
}

// RequestInventory sends the BOM to inventory. The first call crosses
// into SOLICITUD and freezes the BOM; every call creates or refreshes
// the purchase request from the current item set.
func (s *Service) RequestInventory(ctx context.Context, actor shared.Actor, bomID int64) (int64, error) {
	b, items, err := s.repo.Get(ctx, bomID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: el BOM no tiene items", ErrValidation)
	}
	if b.Estado == StatusBorrador {
		now := time.Now()
		b.Estado = StatusSolicitud
		b.SolicitadoEn = &now
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.UpdateBom(ctx, b)
		})
		if err != nil {
			return 0, err
		}
	}
	sync := SyncInput{BomID: b.ID, WorkOrderID: b.WorkOrderID, Items: make([]SyncItem, 0, len(items))}
	for _, it := range items {
		sync.Items = append(sync.Items, SyncItem{
			BomItemID:          it.ID,
			Plano:              it.Plano,
			Codigo:             it.Codigo,
			Descripcion:        it.Descripcion,
			Unidad:             it.Unidad,
			CantidadSolicitada: it.CantidadSolicitada,
			Observaciones:      it.Observaciones,
		})
	}
	requestID, err := s.purchasing.SyncFromBom(ctx, actor, sync)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actor, "BOM_SOLICITUD", bomID, map[string]any{"solicitud_compra": requestID})
	return requestID, nil
}

// Get returns one BOM with items.
func (s *Service) Get(ctx context.Context, id int64) (Bom, []BomItem, error) {
	return s.repo.Get(ctx, id)
}

// GetByWorkOrder returns the BOM of a work order.
func (s *Service) GetByWorkOrder(ctx context.Context, workOrderID int64) (Bom, []BomItem, error) {
	return s.repo.GetByWorkOrder(ctx, workOrderID)
}

// ListTemplates returns available templates.
func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]Template, error) {
	return s.repo.ListTemplates(ctx, activeOnly)
}

// GetTemplate returns one template with items.
func (s *Service) GetTemplate(ctx context.Context, id int64) (Template, []TemplateItem, error) {
	return s.repo.GetTemplate(ctx, id)
}

func buildItem(bomID int64, input ItemInput) (BomItem, error) {
	if strings.TrimSpace(input.Descripcion) == "" {
		return BomItem{}, fmt.Errorf("%w: descripción requerida", ErrValidation)
	}
	estandar, err := parseQuantity(input.CantidadEstandar)
	if err != nil {
		return BomItem{}, err
	}
	solicitada, err := parseQuantity(input.CantidadSolicitada)
	if err != nil {
		return BomItem{}, err
	}
	return BomItem{
		BomID:              bomID,
		Plano:              strings.TrimSpace(input.Plano),
		Codigo:             strings.TrimSpace(input.Codigo),
		Descripcion:        strings.TrimSpace(input.Descripcion),
		Unidad:             strings.TrimSpace(input.Unidad),
		CantidadEstandar:   estandar,
		CantidadSolicitada: solicitada,
		Observaciones:      input.Observaciones,
	}, nil
}

func parseQuantity(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero.Round(money.QuantityScale), nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: cantidad %q", ErrValidation, raw)
	}
	if v.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: cantidad negativa %q", ErrValidation, raw)
	}
	return v.Round(money.QuantityScale), nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "bom",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
