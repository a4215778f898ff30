package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
)

// maxBodyBytes bounds any JSON request body.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names so details match the request shape.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJSONBody reads exactly one JSON object into dest and runs its validate tags.
// Unknown fields, trailing data and bodies over 1 MiB are validation errors.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	body := io.LimitReader(r.Body, maxBodyBytes+1)
	counted := &countingReader{r: body}
	decoder := json.NewDecoder(counted)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		if counted.n > maxBodyBytes {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
				WithDetails(map[string]any{"max_bytes": maxBodyBytes})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": describeDecodeError(err)})
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid request body").
			WithDetails(map[string]any{"error": "body must contain a single JSON object"})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// describeDecodeError rewrites encoding/json errors into client facing text.
func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "body is empty"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "body is truncated"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at byte %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return fmt.Sprintf("%s must be %s", field, typeErr.Type.String())
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	}
	return err.Error()
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldPath(fieldErr)] = validationMessage(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// fieldPath drops the root struct name so nested errors read "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

var messageFormats = map[string]string{
	"min":      "must be at least %s",
	"gte":      "must be at least %s",
	"max":      "must be at most %s",
	"lte":      "must be at most %s",
	"gt":       "must be greater than %s",
	"datetime": "must match %s",
	"oneof":    "must be one of [%s]",
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "uuid", "uuid4":
		return "must be a valid uuid"
	}
	if format, ok := messageFormats[fe.Tag()]; ok {
		return fmt.Sprintf(format, fe.Param())
	}
	return "is invalid"
}
