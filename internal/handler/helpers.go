package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/apierror"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/enrichment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/lifecycle"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/middleware"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report JSON names in field errors.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = validate.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
		return fiscal.IsCNPJ(fl.Field().String())
	})
	_ = validate.RegisterValidation("cep", func(fl validator.FieldLevel) bool {
		return fiscal.IsCEP(fl.Field().String())
	})
	_ = validate.RegisterValidation("uf", func(fl validator.FieldLevel) bool {
		return fiscal.ValidUF(fl.Field().String())
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps domain errors to HTTP statuses. Anything unknown is a 500
// whose detail stays in the log.
func respondError(c *gin.Context, err error) {
	if v, ok := shipment.AsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(v))
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, infra.ErrArtifactNotFound),
		errors.Is(err, enrichment.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrSessionForbidden):
		status = http.StatusForbidden
	case errors.Is(err, fiscal.ErrUnknownMode),
		errors.Is(err, fiscal.ErrInvalidTaxID),
		errors.Is(err, fiscal.ErrInvalidPostalCode),
		errors.Is(err, service.ErrUnknownSuggestionField),
		errors.Is(err, service.ErrUnknownArtifact):
		status = http.StatusBadRequest
	case errors.Is(err, shipment.ErrUnknownFarm),
		errors.Is(err, shipment.ErrUnknownWarehouse):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, shipment.ErrConfirmationRequired),
		errors.Is(err, shipment.ErrModeChange),
		errors.Is(err, lifecycle.ErrNotFiscal):
		status = http.StatusConflict
	case errors.Is(err, shipment.ErrRecordLocked):
		status = http.StatusLocked
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrSyncUnavailable),
		errors.Is(err, infra.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("handler: unexpected error")
		c.JSON(status, apierror.New("Erro interno do servidor"))
		return
	}
	if status == http.StatusServiceUnavailable {
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("handler: upstream unavailable")
		msg := "Servico externo indisponivel. Tente novamente em instantes."
		if errors.Is(err, lifecycle.ErrSyncUnavailable) {
			msg = "Servico fiscal indisponivel. O status do documento nao foi alterado."
		}
		c.JSON(status, apierror.New(msg))
		return
	}
	c.JSON(status, apierror.New(rootMessage(err)))
}

// rootMessage drops wrapping context so clients see the sentinel's text.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		fiscal.ErrUnknownMode,
		shipment.ErrUnknownFarm,
		shipment.ErrUnknownWarehouse,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
