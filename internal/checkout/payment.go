package checkout

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/storefront-cart/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	cardValidate  = newCardValidator()
)

func newCardValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("card_expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	return v
}

// Card is the card form. It is checked for shape only and never stored.
type Card struct {
	Number string `json:"number" validate:"required,len=16,digits"`
	Holder string `json:"holder" validate:"required"`
	Expiry string `json:"expiry" validate:"required,card_expiry"`
	CVV    string `json:"cvv" validate:"required,len=3,digits"`
}

func (c Card) normalized() Card {
	return Card{
		Number: strings.ReplaceAll(strings.TrimSpace(c.Number), " ", ""),
		Holder: strings.TrimSpace(c.Holder),
		Expiry: strings.TrimSpace(c.Expiry),
		CVV:    strings.TrimSpace(c.CVV),
	}
}

type Payment struct {
	Method enums.PaymentMethod
	Card   *Card
}

// Validate reports every invalid field at once.
func (p Payment) Validate() error {
	if !p.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment").
			WithDetails(map[string]string{"method": "must be cash or card"})
	}
	if p.Method != enums.PaymentMethodCard {
		return nil
	}
	if p.Card == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment").
			WithDetails(map[string]string{"card": "is required"})
	}

	card := p.Card.normalized()
	err := cardValidate.Struct(card)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment")
	}
	details := map[string]string{}
	for _, fe := range fieldErrs {
		details["card."+fe.Field()] = cardFieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment").WithDetails(details)
}

func cardFieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "number":
		return "must be 16 digits"
	case "holder":
		return "is required"
	case "expiry":
		return "must be MM/YY"
	case "cvv":
		return "must be 3 digits"
	}
	return "is invalid"
}
