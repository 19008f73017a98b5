// Package validation checks product and order payloads before they reach
// storage. Validation is pure: no I/O, and every failing field is reported.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

// FieldError names one failing field by its JSON path, e.g. "items[1].price".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the validation failure result. It is never empty when returned.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsErrors extracts validation errors from err.
func AsErrors(err error) (Errors, bool) {
	var verrs Errors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// decimals are reduced to their exact sign, so decimal tags may only
	// compare against 0 (gt=0, gte=0)
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.Sign()
		}
		return nil
	}, decimal.Decimal{})

	return &Validator{v: v}
}

func (val *Validator) ValidateProduct(in *domain.ProductInput) error {
	var errs Errors
	errs = append(errs, val.structErrors(in)...)
	errs = append(errs, serialErrors("serialNumbers", in.SerialNumbers)...)
	if len(in.SerialNumbers) > 0 && in.Quantity != len(in.SerialNumbers) {
		errs = append(errs, QuantityMismatch(len(in.SerialNumbers)))
	}
	return errs.orNil()
}

// ValidateProductPatch applies the product constraints to the fields present
// in the patch only.
func (val *Validator) ValidateProductPatch(patch *domain.ProductPatch) error {
	var errs Errors
	errs = append(errs, val.structErrors(patch)...)
	errs = append(errs, serialErrors("serialNumbers", patch.SerialNumbers)...)
	if patch.SerialNumbers != nil && patch.Quantity != nil &&
		len(patch.SerialNumbers) > 0 && *patch.Quantity != len(patch.SerialNumbers) {
		errs = append(errs, QuantityMismatch(len(patch.SerialNumbers)))
	}
	return errs.orNil()
}

// ValidateMergedProduct checks the cross-field serial/quantity rule on the
// result of a partial update.
func (val *Validator) ValidateMergedProduct(p domain.Product) error {
	var countErr *domain.SerialCountError
	if errors.As(p.CheckSerialCount(), &countErr) {
		return Errors{QuantityMismatch(countErr.Serials)}
	}
	return nil
}

func (val *Validator) ValidatePurchaseOrder(o *domain.PurchaseOrder) error {
	var errs Errors
	errs = append(errs, val.structErrors(o)...)
	errs = append(errs, orderErrors(&o.OrderHeader)...)
	return errs.orNil()
}

func (val *Validator) ValidateSalesOrder(o *domain.SalesOrder) error {
	var errs Errors
	errs = append(errs, val.structErrors(o)...)
	errs = append(errs, orderErrors(&o.OrderHeader)...)
	return errs.orNil()
}

// ValidateOrder dispatches on the concrete order variant.
func (val *Validator) ValidateOrder(o domain.Order) error {
	switch order := o.(type) {
	case *domain.PurchaseOrder:
		return val.ValidatePurchaseOrder(order)
	case *domain.SalesOrder:
		return val.ValidateSalesOrder(order)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownOrderType, o)
	}
}

func (val *Validator) ValidateStatus(s domain.OrderStatus) error {
	if s == "" {
		return Errors{{Field: "status", Message: "is required"}}
	}
	if !s.IsValid() {
		return Errors{{Field: "status", Message: "must be one of: " + statusList()}}
	}
	return nil
}

func orderErrors(h *domain.OrderHeader) Errors {
	var errs Errors
	for i, item := range h.Items {
		prefix := fmt.Sprintf("items[%d].serialNumbers", i)
		errs = append(errs, serialErrors(prefix, item.SerialNumbers)...)
		if len(item.SerialNumbers) > item.Quantity {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: fmt.Sprintf("must not contain more than %d serial numbers", item.Quantity),
			})
		}
	}

	if len(h.Items) > 0 && h.Total.IsPositive() {
		if expected := domain.ItemsTotal(h.Items); !h.Total.Equal(expected) {
			errs = append(errs, FieldError{
				Field:   "total",
				Message: fmt.Sprintf("must equal the sum of item price × quantity (%s)", expected.String()),
			})
		}
	}
	return errs
}

func serialErrors(field string, serials []string) Errors {
	var errs Errors
	seen := make(map[string]int, len(serials))
	for i, sn := range serials {
		path := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(sn) == "" {
			errs = append(errs, FieldError{Field: path, Message: "must not be blank"})
			continue
		}
		if first, dup := seen[sn]; dup {
			errs = append(errs, FieldError{
				Field:   path,
				Message: fmt.Sprintf("duplicate serial number %q (also at index %d)", sn, first),
			})
			continue
		}
		seen[sn] = i
	}
	return errs
}

// QuantityMismatch is the field error reported when quantity disagrees with
// the n serial numbers supplied.
func QuantityMismatch(n int) FieldError {
	return FieldError{
		Field:   "quantity",
		Message: fmt.Sprintf("must equal the number of serial numbers (%d)", n),
	}
}

func (val *Validator) structErrors(s interface{}) Errors {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Field: "", Message: err.Error()}}
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath turns "PurchaseOrder.OrderHeader.items[0].price" into
// "items[0].price". Go identifiers start upper-case, JSON names do not.
func fieldPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	kept := segments[:0]
	for _, s := range segments {
		if s == "" || unicode.IsUpper([]rune(s)[0]) {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, ".")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return "must not be empty"
		case reflect.Slice:
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		default:
			return "must be at least " + fe.Param()
		}
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "eq":
		return fmt.Sprintf("must be %q", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func statusList() string {
	names := make([]string, len(domain.OrderStatuses))
	for i, s := range domain.OrderStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func (e Errors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
