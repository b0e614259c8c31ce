// Package access decides which logical sections of a loading record a
// caller may change. Everything funnels through Editable so the whole matrix
// can be tested without HTTP or persistence.
package access

import (
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
)

// Section is a group of fields sharing one mutability rule.
type Section string

const (
	SectionIdentification  Section = "identificacao"
	SectionWeighing        Section = "pesagem"
	SectionQuality         Section = "qualidade"
	SectionDiscountConfig  Section = "configuracao_desconto"
	SectionFiscalRecipient Section = "destinatario_fiscal"
	SectionFiscalOperation Section = "operacao_fiscal"
)

// Sections in display order.
var Sections = []Section{
	SectionIdentification,
	SectionWeighing,
	SectionQuality,
	SectionDiscountConfig,
	SectionFiscalRecipient,
	SectionFiscalOperation,
}

// Roles
const (
	RoleOwner    = "proprietario"
	RoleManager  = "gerente"
	RoleAdmin    = "administrador"
	RoleOperator = "operador"
	RoleWeigher  = "balanceiro"
)

// Capabilities granted to non-elevated users.
const (
	PermUpdate        = "carregamentos.atualizar"
	PermManageWeight  = "carregamentos.gerenciar_peso"
	PermManageQuality = "carregamentos.gerenciar_qualidade"
)

// IsElevated reports whether role bypasses capability checks.
func IsElevated(role string) bool {
	switch role {
	case RoleOwner, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Context is the read-only input of Editable. Role and Permissions come from
// the caller's token; the rest from the record.
type Context struct {
	Mode           fiscal.Mode
	Editing        bool
	Role           string
	Permissions    []string
	DocumentStatus fiscal.DocumentStatus
}

func (c Context) has(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Locked reports the global lock: an existing fiscal record whose document
// was authorized.
func (c Context) Locked() bool {
	return c.Editing && c.Mode.IsFiscal() && c.DocumentStatus == fiscal.StatusAuthorized
}

// Editable never panics; unknown sections are locked.
func Editable(section Section, c Context) bool {
	if !known(section) {
		return false
	}
	if c.Locked() {
		return false
	}

	switch section {
	case SectionFiscalRecipient:
		if !c.Mode.IsFiscal() {
			return false
		}
	case SectionFiscalOperation:
		if c.Mode != fiscal.ModeSale {
			return false
		}
	case SectionWeighing, SectionQuality, SectionDiscountConfig:
		// measurements only exist once the record does
		if !c.Editing {
			return false
		}
	}

	if IsElevated(c.Role) {
		return true
	}

	switch section {
	case SectionWeighing:
		return c.has(PermManageWeight)
	case SectionQuality:
		return c.has(PermManageQuality)
	case SectionDiscountConfig:
		return false
	default:
		return c.has(PermUpdate)
	}
}

// Matrix evaluates every section at once.
func Matrix(c Context) map[Section]bool {
	out := make(map[Section]bool, len(Sections))
	for _, s := range Sections {
		out[s] = Editable(s, c)
	}
	return out
}

func known(s Section) bool {
	for _, k := range Sections {
		if k == s {
			return true
		}
	}
	return false
}
