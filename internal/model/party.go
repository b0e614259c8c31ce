package model

// Party is a fiscal identity block: issuer, recipient, farm or warehouse.
type Party struct {
	TaxID             string `gorm:"type:varchar(14)" json:"cnpj"`
	LegalName         string `json:"razao_social"`
	TradeName         string `json:"nome_fantasia"`
	StateRegistration string `gorm:"type:varchar(20)" json:"inscricao_estadual"`
	Street            string `json:"logradouro"`
	Number            string `gorm:"type:varchar(20)" json:"numero"`
	Complement        string `json:"complemento"`
	District          string `json:"bairro"`
	City              string `json:"municipio"`
	UF                string `gorm:"type:char(2)" json:"uf"`
	PostalCode        string `gorm:"type:varchar(8)" json:"cep"`
}
