package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/hkd-sync/internal/application/ports"
	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/pkg/logger"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

// Client implementación del puerto RemoteStore sobre un Tree.
// Sin conexión falla rápido con domain.ErrRemoteUnavailable; un fallo de transporte
// marca el Monitor como desconectado.
type Client struct {
	tree    Tree
	monitor *Monitor
	phones  phone.Normalizer
	timeout time.Duration
	log     *logger.Logger
}

var _ ports.RemoteStore = (*Client)(nil)

// NewClient construye el cliente remoto. timeout <= 0 no limita las llamadas.
func NewClient(tree Tree, monitor *Monitor, phones phone.Normalizer, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{tree: tree, monitor: monitor, phones: phones, timeout: timeout, log: log.Component("remote")}
}

func (c *Client) Connected() bool { return c.monitor.Connected() }

func (c *Client) OnConnectivityChange(listener func(bool)) func() {
	return c.monitor.OnConnectivityChange(listener)
}

// ReadUnit lee units/{unitID} completo. Las hojas hijas ilegibles se omiten con un warning;
// una info ilegible es un error.
func (c *Client) ReadUnit(ctx context.Context, unitID string) (entity.UnitSnapshot, error) {
	if unitID == "" {
		return entity.UnitSnapshot{}, fmt.Errorf("%w: unit id vacío", domain.ErrInvalidInput)
	}
	if !c.Connected() {
		return entity.UnitSnapshot{}, domain.ErrRemoteUnavailable
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	nodes, err := c.tree.List(ctx, entity.UnitPath(unitID))
	if err != nil {
		return entity.UnitSnapshot{}, c.fail("read unit", err)
	}

	var (
		snap    entity.UnitSnapshot
		hasInfo bool
	)
	for _, n := range nodes {
		col, owner, id, ok := entity.ParsePath(n.Path)
		if !ok || owner != unitID {
			continue
		}
		switch col {
		case entity.CollectionUnits:
			var u entity.BusinessUnit
			if err := json.Unmarshal(n.Value, &u); err != nil {
				return entity.UnitSnapshot{}, fmt.Errorf("decode %s: %w", n.Path, err)
			}
			u.ID = unitID
			snap.Info = u
			hasInfo = true
		case entity.CollectionProducts:
			var p entity.Product
			if c.decodeChild(n, &p) {
				p.ID, p.BusinessUnitID = id, unitID
				snap.Products = append(snap.Products, p)
			}
		case entity.CollectionCategories:
			var cat entity.Category
			if c.decodeChild(n, &cat) {
				cat.ID, cat.BusinessUnitID = id, unitID
				snap.Categories = append(snap.Categories, cat)
			}
		case entity.CollectionInvoices:
			var inv entity.Invoice
			if c.decodeChild(n, &inv) {
				inv.ID, inv.BusinessUnitID = id, unitID
				snap.Invoices = append(snap.Invoices, inv)
			}
		}
	}
	if !hasInfo {
		return entity.UnitSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (c *Client) decodeChild(n Node, dst any) bool {
	if err := json.Unmarshal(n.Value, dst); err != nil {
		c.log.Warn().Err(err).Str("path", n.Path).Msg("documento remoto ilegible, se omite")
		return false
	}
	return true
}

// WriteField escribe value en path; nil borra la hoja.
func (c *Client) WriteField(ctx context.Context, path string, value json.RawMessage) error {
	if !entity.IsLeafPath(path) {
		return fmt.Errorf("%w: ruta remota inválida %q", domain.ErrInvalidInput, path)
	}
	if value != nil && !json.Valid(value) {
		return fmt.Errorf("%w: valor JSON inválido para %s", domain.ErrInvalidInput, path)
	}
	if !c.Connected() {
		return domain.ErrRemoteUnavailable
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.tree.Set(ctx, path, value); err != nil {
		return c.fail("write "+path, err)
	}
	return nil
}

// FindUnitByCredential recorre todas las info de unidades en orden de ruta; gana la primera
// coincidencia. Si hay más de una se registra un warning: el remoto no garantiza unicidad.
func (c *Client) FindUnitByCredential(ctx context.Context, phoneNumber, secret string) (entity.BusinessUnit, error) {
	if !c.Connected() {
		return entity.BusinessUnit{}, domain.ErrRemoteUnavailable
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	nodes, err := c.tree.List(ctx, "units")
	if err != nil {
		return entity.BusinessUnit{}, c.fail("scan units", err)
	}

	var (
		found   entity.BusinessUnit
		matches int
	)
	for _, n := range nodes {
		col, unitID, _, ok := entity.ParsePath(n.Path)
		if !ok || col != entity.CollectionUnits {
			continue
		}
		var u entity.BusinessUnit
		if err := json.Unmarshal(n.Value, &u); err != nil {
			c.log.Warn().Err(err).Str("path", n.Path).Msg("info de unidad ilegible, se omite")
			continue
		}
		u.ID = unitID
		if !u.IsOperator() || u.Secret != secret || !c.phones.Equal(u.Phone, phoneNumber) {
			continue
		}
		matches++
		if matches == 1 {
			found = u
		}
	}
	switch {
	case matches == 0:
		return entity.BusinessUnit{}, domain.ErrNotFound
	case matches > 1:
		c.log.Warn().Int("matches", matches).Str("unit_id", found.ID).
			Msg("varias unidades remotas coinciden con la credencial; se usa la primera")
	}
	return found, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// fail normaliza errores del backend: los de transporte pasan a ErrRemoteUnavailable
// y marcan el remoto como desconectado.
func (c *Client) fail(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if IsTransportError(err) {
		c.monitor.Report(false)
		if errors.Is(err, domain.ErrRemoteUnavailable) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
