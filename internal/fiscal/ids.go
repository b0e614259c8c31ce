package fiscal

import (
	"errors"
	"strings"
)

const (
	CNPJLength = 14
	CPFLength  = 11
	CEPLength  = 8
)

var (
	ErrInvalidTaxID      = errors.New("CNPJ/CPF invalido")
	ErrInvalidPostalCode = errors.New("CEP invalido")
	ErrInvalidUF         = errors.New("UF invalida")
)

// UFs lists the 27 federative units accepted on issuer, recipient and carrier.
var UFs = []string{
	"AC", "AL", "AM", "AP", "BA", "CE", "DF", "ES", "GO",
	"MA", "MG", "MS", "MT", "PA", "PB", "PE", "PI", "PR",
	"RJ", "RN", "RO", "RR", "RS", "SC", "SE", "SP", "TO",
}

var ufSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(UFs))
	for _, uf := range UFs {
		m[uf] = struct{}{}
	}
	return m
}()

// ValidUF is case-insensitive.
func ValidUF(uf string) bool {
	_, ok := ufSet[normalizeUF(uf)]
	return ok
}

// OnlyDigits strips masks such as "12.345.678/0001-95" or "78000-000".
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsCNPJ reports whether the unmasked value has CNPJ length. It does not
// check the verifier digits.
func IsCNPJ(s string) bool {
	return len(OnlyDigits(s)) == CNPJLength
}

// IsCEP reports whether the unmasked value has CEP length.
func IsCEP(s string) bool {
	return len(OnlyDigits(s)) == CEPLength
}

// ValidTaxID accepts a CNPJ or a CPF with correct verifier digits.
func ValidTaxID(s string) bool {
	d := OnlyDigits(s)
	switch len(d) {
	case CNPJLength:
		return validCNPJ(d)
	case CPFLength:
		return validCPF(d)
	}
	return false
}

func validCNPJ(d string) bool {
	if repeated(d) {
		return false
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d[:12], w1) == int(d[12]-'0') &&
		checkDigit(d[:13], w2) == int(d[13]-'0')
}

func validCPF(d string) bool {
	if repeated(d) {
		return false
	}
	w1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d[:9], w1) == int(d[9]-'0') &&
		checkDigit(d[:10], w2) == int(d[10]-'0')
}

// checkDigit is the mod-11 rule shared by CNPJ and CPF.
func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func repeated(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}
