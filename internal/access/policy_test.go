package access

import (
	"testing"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/stretchr/testify/assert"
)

func TestEditable_ScenarioD(t *testing.T) {
	ctx := Context{
		Mode:           fiscal.ModeSale,
		Editing:        true,
		Role:           RoleOperator,
		Permissions:    []string{PermUpdate},
		DocumentStatus: fiscal.StatusPending,
	}
	assert.False(t, Editable(SectionWeighing, ctx))

	ctx.Permissions = append(ctx.Permissions, PermManageWeight)
	assert.True(t, Editable(SectionWeighing, ctx))

	ctx.DocumentStatus = fiscal.StatusAuthorized
	assert.False(t, Editable(SectionWeighing, ctx))

	ctx.Role = RoleAdmin
	assert.False(t, Editable(SectionWeighing, ctx))
}

func TestEditable_AuthorizedLocksEverySectionForEveryRole(t *testing.T) {
	roles := []string{RoleOwner, RoleManager, RoleAdmin, RoleOperator, RoleWeigher}
	all := []string{PermUpdate, PermManageWeight, PermManageQuality}
	for _, mode := range []fiscal.Mode{fiscal.ModeTransfer, fiscal.ModeSale} {
		for _, role := range roles {
			ctx := Context{Mode: mode, Editing: true, Role: role, Permissions: all, DocumentStatus: fiscal.StatusAuthorized}
			for s, ok := range Matrix(ctx) {
				assert.False(t, ok, "%s/%s/%s", mode, role, s)
			}
		}
	}
}

func TestEditable_ErrorStatusDoesNotLock(t *testing.T) {
	ctx := Context{Mode: fiscal.ModeSale, Editing: true, Role: RoleManager, DocumentStatus: fiscal.StatusError}
	for s, ok := range Matrix(ctx) {
		assert.True(t, ok, string(s))
	}
}

func TestEditable_Matrix(t *testing.T) {
	operator := []string{PermUpdate}

	tests := []struct {
		name string
		ctx  Context
		want map[Section]bool
	}{
		{
			name: "elevated creating internal",
			ctx:  Context{Mode: fiscal.ModeInternal, Role: RoleOwner},
			want: map[Section]bool{
				SectionIdentification: true, SectionWeighing: false, SectionQuality: false,
				SectionDiscountConfig: false, SectionFiscalRecipient: false, SectionFiscalOperation: false,
			},
		},
		{
			name: "elevated editing transfer",
			ctx:  Context{Mode: fiscal.ModeTransfer, Editing: true, Role: RoleManager, DocumentStatus: fiscal.StatusPending},
			want: map[Section]bool{
				SectionIdentification: true, SectionWeighing: true, SectionQuality: true,
				SectionDiscountConfig: true, SectionFiscalRecipient: true, SectionFiscalOperation: false,
			},
		},
		{
			name: "operator editing sale",
			ctx:  Context{Mode: fiscal.ModeSale, Editing: true, Role: RoleOperator, Permissions: operator},
			want: map[Section]bool{
				SectionIdentification: true, SectionWeighing: false, SectionQuality: false,
				SectionDiscountConfig: false, SectionFiscalRecipient: true, SectionFiscalOperation: true,
			},
		},
		{
			name: "weigher without update",
			ctx: Context{Mode: fiscal.ModeTransfer, Editing: true, Role: RoleWeigher,
				Permissions: []string{PermManageWeight, PermManageQuality}},
			want: map[Section]bool{
				SectionIdentification: false, SectionWeighing: true, SectionQuality: true,
				SectionDiscountConfig: false, SectionFiscalRecipient: false, SectionFiscalOperation: false,
			},
		},
		{
			name: "operator creating transfer",
			ctx:  Context{Mode: fiscal.ModeTransfer, Role: RoleOperator, Permissions: operator},
			want: map[Section]bool{
				SectionIdentification: true, SectionWeighing: false, SectionQuality: false,
				SectionDiscountConfig: false, SectionFiscalRecipient: true, SectionFiscalOperation: false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matrix(tt.ctx))
		})
	}
}

func TestEditable_UnknownSectionFailsClosed(t *testing.T) {
	ctx := Context{Mode: fiscal.ModeSale, Editing: true, Role: RoleAdmin}
	assert.False(t, Editable(Section("financeiro"), ctx))
	assert.False(t, Editable("", ctx))
}

func TestEditable_InternalAuthorizedStatusIgnored(t *testing.T) {
	// internal records never have a document; a stray status does not lock
	ctx := Context{Mode: fiscal.ModeInternal, Editing: true, Role: RoleAdmin, DocumentStatus: fiscal.StatusAuthorized}
	assert.True(t, Editable(SectionWeighing, ctx))
}
