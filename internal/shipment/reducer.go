// Package shipment owns the working copy of a loading record. Every mutation
// goes through Reducer.Apply, which enforces the access policy and then runs
// the dependency graph so derived fields (issuer and recipient mirrors,
// weights, CFOP, editability) always agree with their inputs.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/access"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/weighing"
	"github.com/google/uuid"
)

// Caller is the read-only session context taken from the access token.
type Caller struct {
	UserID      uuid.UUID
	Role        string
	Permissions []string
}

// Directory resolves registry selections. A missing id is reported with an
// error wrapping ErrUnknownFarm or ErrUnknownWarehouse; any other error is a
// lookup failure.
type Directory interface {
	Farm(ctx context.Context, id uuid.UUID) (*model.Farm, error)
	Warehouse(ctx context.Context, id uuid.UUID) (*model.Warehouse, error)
}

// resolveErr passes a directory miss through and tags any other failure, so
// an outage is never reported as a bad selection.
func resolveErr(err, miss error, what string) error {
	if errors.Is(err, miss) {
		return err
	}
	return fmt.Errorf("shipment: resolve %s: %w", what, err)
}

// Defaults are applied once when a record is created.
type Defaults struct {
	Policy weighing.Policy
}

// Reducer is not safe for concurrent use; Session serialises access.
type Reducer struct {
	rec     model.Shipment
	mode    fiscal.Mode
	editing bool
	caller  Caller
	dir     Directory

	farm       *model.Farm
	warehouse  *model.Warehouse
	prevDriver [2]string

	access map[access.Section]bool
}

// New starts a record in the given mode and applies the mode defaults.
func New(mode fiscal.Mode, caller Caller, dir Directory, d Defaults, now time.Time) *Reducer {
	r := &Reducer{mode: mode, caller: caller, dir: dir}
	r.rec = model.Shipment{
		ScheduledAt: now,
		Mode:        string(mode),
	}
	if caller.UserID != uuid.Nil {
		id := caller.UserID
		r.rec.CreatedBy = &id
	}
	r.applyModeDefaults(d)
	r.run(always)
	return r
}

// Load wraps a persisted record for editing. Nothing is recomputed or
// mirrored: persisted values are authoritative until an input changes.
func Load(rec model.Shipment, caller Caller, dir Directory) (*Reducer, error) {
	mode, err := fiscal.ParseMode(rec.Mode)
	if err != nil {
		return nil, err
	}
	r := &Reducer{rec: rec, mode: mode, editing: true, caller: caller, dir: dir}
	r.rec.Mode = string(mode)
	if r.rec.Document.Status == "" {
		r.rec.Document.Status = string(fiscal.StatusNone)
	}
	r.prevDriver = [2]string{rec.DriverName, rec.DriverDocument}
	r.recomputeAccess()
	return r, nil
}

func (r *Reducer) applyModeDefaults(d Defaults) {
	def := fiscal.DefaultsFor(r.mode)
	r.rec.Fiscal.Nature = def.Nature
	r.rec.Fiscal.FreightPayer = def.FreightPayer
	r.rec.Fiscal.PaymentCode = def.PaymentCode
	r.rec.Document.Status = string(fiscal.StatusNone)

	p := d.Policy
	if p.ShrinkFactor.IsZero() && p.RefMoisture.IsZero() && p.RefImpurities.IsZero() {
		p = weighing.DefaultPolicy()
	}
	r.rec.Weighing.RefMoisture = p.RefMoisture
	r.rec.Weighing.ShrinkFactor = p.ShrinkFactor
	r.rec.Weighing.RefImpurities = p.RefImpurities
}

func (r *Reducer) Mode() fiscal.Mode { return r.mode }
func (r *Reducer) Editing() bool { return r.editing }

// Record returns a copy of the working record.
func (r *Reducer) Record() model.Shipment { return r.rec }

// Context builds the access-policy input for the current caller and record.
func (r *Reducer) Context() access.Context {
	return access.Context{
		Mode:           r.mode,
		Editing:        r.editing,
		Role:           r.caller.Role,
		Permissions:    r.caller.Permissions,
		DocumentStatus: fiscal.DocumentStatus(r.rec.Document.Status),
	}
}

// Locked reports whether the authorized document froze the record.
func (r *Reducer) Locked() bool { return r.Context().Locked() }

// Access returns the editability matrix computed by the last recompute.
func (r *Reducer) Access() map[access.Section]bool {
	out := make(map[access.Section]bool, len(r.access))
	for k, v := range r.access {
		out[k] = v
	}
	return out
}

// Apply merges p into the record. Fields whose section is locked are
// skipped and listed in Outcome.Denied; only a mode change or an unknown
// registry selection returns an error, and in that case nothing is applied.
func (r *Reducer) Apply(ctx context.Context, p Patch) (Outcome, error) {
	if p.Mode != nil && fiscal.Mode(*p.Mode) != r.mode {
		return Outcome{}, ErrModeChange
	}

	a := &applier{editable: r.access}

	// resolve registry selections before touching the record
	var farm *model.Farm
	var wh *model.Warehouse
	if p.FarmID != nil && a.editable[access.SectionIdentification] && !sameID(r.rec.FarmID, *p.FarmID) {
		f, err := r.dir.Farm(ctx, *p.FarmID)
		if err != nil {
			return Outcome{}, resolveErr(err, ErrUnknownFarm, "farm")
		}
		farm = f
	}
	if p.WarehouseID != nil && a.editable[access.SectionIdentification] && !sameID(r.rec.WarehouseID, *p.WarehouseID) {
		w, err := r.dir.Warehouse(ctx, *p.WarehouseID)
		if err != nil {
			return Outcome{}, resolveErr(err, ErrUnknownWarehouse, "warehouse")
		}
		wh = w
	}

	r.prevDriver = [2]string{r.rec.DriverName, r.rec.DriverDocument}
	a.apply(&r.rec, p)

	if farm != nil {
		r.farm = farm
		a.fired |= trFarm
		a.out.Changed = true
	}
	if wh != nil {
		r.warehouse = wh
		a.fired |= trWarehouse
		a.out.Changed = true
	}
	if p.FarmID != nil && farm == nil && !sameID(r.rec.FarmID, *p.FarmID) {
		a.deny("fazenda_id")
	}
	if p.WarehouseID != nil && wh == nil && !sameID(r.rec.WarehouseID, *p.WarehouseID) {
		a.deny("armazem_id")
	}

	r.run(a.fired)
	return a.out, nil
}

func sameID(cur *uuid.UUID, next uuid.UUID) bool {
	return cur != nil && *cur == next
}
