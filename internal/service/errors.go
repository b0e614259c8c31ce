package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound               = errors.New("registro nao encontrado")
	ErrInvalidCredentials     = errors.New("credenciais invalidas")
	ErrSessionNotFound        = errors.New("sessao de edicao nao encontrada ou expirada")
	ErrSessionForbidden       = errors.New("sessao pertence a outro usuario")
	ErrUnknownSuggestionField = errors.New("campo sem sugestoes")
	ErrUnknownArtifact        = errors.New("tipo de artefato invalido, use pdf ou xml")
)

// notFound maps gorm's missing-row error to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
