// Package validation turns untyped request payloads into catalog values.
//
// Validation runs in two passes: first every known field is checked for
// presence and JSON type, then the decoded values are checked against the
// struct rules below. Violations from both passes are collected into a
// single ValidationError instead of stopping at the first one.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/abgdnv/catalog/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	fieldID          = "id"
	fieldName        = "name"
	fieldDescription = "description"
	fieldPrice       = "price"
	fieldQuantity    = "quantity"
	fieldCategory    = "category"
)

// maxSafeInteger bounds integral floats so they convert to int without loss.
const maxSafeInteger = 1 << 53

// ValidationError lists every violated constraint, keyed by payload field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// createInput carries the rules for a full product.
type createInput struct {
	Name        string          `json:"name"        validate:"min=6"`
	Description string          `json:"description"`
	Price       float64         `json:"price"       validate:"gt=0"`
	Quantity    int             `json:"quantity"    validate:"min=1,max=10"`
	Category    domain.Category `json:"category"    validate:"category"`
}

// patchInput carries the same rules, applied only to fields that are present.
type patchInput struct {
	Name        *string          `json:"name"        validate:"omitnil,min=6"`
	Description *string          `json:"description"`
	Price       *float64         `json:"price"       validate:"omitnil,gt=0"`
	Quantity    *int             `json:"quantity"    validate:"omitnil,min=1,max=10"`
	Category    *domain.Category `json:"category"    validate:"omitnil,category"`
}

// Validator validates product payloads. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the catalog rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return domain.Category(fl.Field().String()).Valid()
	})
	return &Validator{validate: v}
}

// ValidateCreate builds a Product from input. Every field is required.
// Unknown fields are ignored.
func (v *Validator) ValidateCreate(input map[string]any) (domain.Product, error) {
	verr := &ValidationError{}

	id := requireField(input, fieldID, verr, parseUUID)
	name := requireField(input, fieldName, verr, parseString)
	description := requireField(input, fieldDescription, verr, parseString)
	price := requireField(input, fieldPrice, verr, parseFloat)
	quantity := requireField(input, fieldQuantity, verr, parseInt)
	category := requireField(input, fieldCategory, verr, parseCategory)

	in := createInput{
		Name:        deref(name),
		Description: deref(description),
		Price:       deref(price),
		Quantity:    deref(quantity),
		Category:    deref(category),
	}
	v.checkRules(in, verr)

	if err := verr.orNil(); err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		ID:          *id,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Category:    in.Category,
	}, nil
}

// ValidatePatch builds a ProductPatch from input. Every field is optional and
// an empty input yields an empty patch. Unknown fields are ignored.
func (v *Validator) ValidatePatch(input map[string]any) (domain.ProductPatch, error) {
	verr := &ValidationError{}

	in := patchInput{
		Name:        optionalField(input, fieldName, verr, parseString),
		Description: optionalField(input, fieldDescription, verr, parseString),
		Price:       optionalField(input, fieldPrice, verr, parseFloat),
		Quantity:    optionalField(input, fieldQuantity, verr, parseInt),
		Category:    optionalField(input, fieldCategory, verr, parseCategory),
	}
	id := optionalField(input, fieldID, verr, parseUUID)
	v.checkRules(in, verr)

	if err := verr.orNil(); err != nil {
		return domain.ProductPatch{}, err
	}
	return domain.ProductPatch{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Category:    in.Category,
	}, nil
}

// ValidateUpdate is ValidatePatch for the product identified by id.
// An id in the payload must name the same product.
func (v *Validator) ValidateUpdate(id uuid.UUID, input map[string]any) (domain.ProductPatch, error) {
	patch, err := v.ValidatePatch(input)
	if err != nil {
		return patch, err
	}
	if patch.ID != nil && *patch.ID != id {
		verr := &ValidationError{}
		verr.add(fieldID, "must match the product ID in the path")
		return domain.ProductPatch{}, verr
	}
	return patch, nil
}

// checkRules runs the struct rules and records failures for fields that passed the type pass.
func (v *Validator) checkRules(in any, verr *ValidationError) {
	err := v.validate.Struct(in)
	if err == nil {
		return
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		verr.add("_", err.Error())
		return
	}
	for _, fieldErr := range validationErrors {
		field := fieldErr.Field()
		if verr.has(field) {
			continue
		}
		verr.add(field, ruleMessage(fieldErr))
	}
}

// ruleMessage renders a validator failure as a human-readable sentence.
func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "category":
		return "must be one of: " + categoryList()
	default:
		return "failed on rule: " + fe.Tag()
	}
}

func categoryList() string {
	names := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// requireField and optionalField decode one field with parse, which returns a
// message when the raw JSON value has the wrong type.
func requireField[T any](input map[string]any, field string, verr *ValidationError, parse func(any) (T, string)) *T {
	if _, ok := input[field]; !ok {
		verr.add(field, "field required")
		return nil
	}
	return optionalField(input, field, verr, parse)
}

func optionalField[T any](input map[string]any, field string, verr *ValidationError, parse func(any) (T, string)) *T {
	raw, ok := input[field]
	if !ok {
		return nil
	}
	value, msg := parse(raw)
	if msg != "" {
		verr.add(field, msg)
		return nil
	}
	return &value
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func parseString(raw any) (string, string) {
	s, ok := raw.(string)
	if !ok {
		return "", "must be a string"
	}
	return s, ""
}

func parseCategory(raw any) (domain.Category, string) {
	s, msg := parseString(raw)
	return domain.Category(s), msg
}

func parseUUID(raw any) (uuid.UUID, string) {
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, "must be a UUID string"
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, "must be a valid UUID"
	}
	return id, ""
}

func parseFloat(raw any) (float64, string) {
	switch n := raw.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, "must be a number"
		}
		return f, ""
	case float64:
		return n, ""
	case float32:
		return float64(n), ""
	case int:
		return float64(n), ""
	case int32:
		return float64(n), ""
	case int64:
		return float64(n), ""
	default:
		return 0, "must be a number"
	}
}

func parseInt(raw any) (int, string) {
	const notInteger = "must be an integer"
	switch n := raw.(type) {
	case int:
		return n, ""
	case int32:
		return int(n), ""
	case int64:
		return int(n), ""
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), ""
		}
		f, err := n.Float64()
		if err != nil {
			return 0, notInteger
		}
		return integralFloat(f)
	case float64:
		return integralFloat(n)
	case float32:
		return integralFloat(float64(n))
	default:
		return 0, notInteger
	}
}

func integralFloat(f float64) (int, string) {
	if f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
		return 0, "must be an integer"
	}
	return int(f), ""
}
