package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/example/inventory-audit/internal/model"
)

const (
	maxBodyBytes    = 1 << 20
	minFieldLength  = 3
	maxSafeInteger  = 1<<53 - 1
	maxQuantityBody = math.MaxInt32
)

// validationError carries a message that is returned to the client as is
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// createProductRequest is a validated POST /products body
type createProductRequest struct {
	Name     string
	Quantity int
	Category string
}

// decodeObject reads a single JSON object, keeping numbers as json.Number
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, invalid("Request body too large")
		}
		return nil, invalid("Invalid request body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, invalid("Invalid request body")
	}

	obj, ok := body.(map[string]any)
	if !ok {
		return nil, invalid(`"value" must be of type object`)
	}
	return obj, nil
}

// validateCreate applies the create rules: name and category are strings of
// at least three characters, quantity is an integer >= 0, and no other keys
// are allowed. The first failure is reported.
func validateCreate(body map[string]any) (createProductRequest, error) {
	var req createProductRequest
	var err error

	if req.Name, err = requiredString(body, "name"); err != nil {
		return req, err
	}
	if req.Quantity, err = requiredQuantity(body, "quantity"); err != nil {
		return req, err
	}
	if req.Category, err = requiredString(body, "category"); err != nil {
		return req, err
	}

	var unknown []string
	for key := range body {
		switch key {
		case "name", "quantity", "category":
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return req, invalid(`"%s" is not allowed`, unknown[0])
	}
	return req, nil
}

func requiredString(body map[string]any, key string) (string, error) {
	v, ok := body[key]
	if !ok {
		return "", invalid(`"%s" is required`, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(`"%s" must be a string`, key)
	}
	if s == "" {
		return "", invalid(`"%s" is not allowed to be empty`, key)
	}
	if utf8.RuneCountInString(s) < minFieldLength {
		return "", invalid(`"%s" length must be at least %d characters long`, key, minFieldLength)
	}
	return s, nil
}

func requiredQuantity(body map[string]any, key string) (int, error) {
	v, ok := body[key]
	if !ok {
		return 0, invalid(`"%s" is required`, key)
	}
	f, ok := number(v)
	if !ok {
		return 0, invalid(`"%s" must be a number`, key)
	}
	if math.Abs(f) > maxSafeInteger {
		return 0, invalid(`"%s" must be a safe number`, key)
	}
	if f != math.Trunc(f) {
		return 0, invalid(`"%s" must be an integer`, key)
	}
	if f < 0 {
		return 0, invalid(`"%s" must be greater than or equal to 0`, key)
	}
	if f > maxQuantityBody {
		return 0, invalid(`"%s" must be less than or equal to %d`, key, maxQuantityBody)
	}
	return int(f), nil
}

// number accepts a JSON number or a numeric string
func number(v any) (float64, bool) {
	var raw string
	switch t := v.(type) {
	case json.Number:
		raw = string(t)
	case string:
		raw = strings.TrimSpace(t)
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// validateUpdate builds a partial update from the PATCH body. Unknown keys
// are ignored; an explicit null is rejected like any other bad value.
func validateUpdate(body map[string]any) (model.ProductUpdate, error) {
	var u model.ProductUpdate

	if v, ok := body["quantity"]; ok {
		f, isNum := number(v)
		if !isNum || f < 0 || f != math.Trunc(f) || f > maxQuantityBody {
			return u, invalid("Quantity must be a valid number and >= 0")
		}
		q := int(f)
		u.Quantity = &q
	}
	if v, ok := body["name"]; ok {
		s, isStr := v.(string)
		if !isStr || strings.TrimSpace(s) == "" {
			return u, invalid("Name cannot be empty")
		}
		u.Name = &s
	}
	if v, ok := body["category"]; ok {
		s, isStr := v.(string)
		if !isStr || strings.TrimSpace(s) == "" {
			return u, invalid("Category cannot be empty")
		}
		u.Category = &s
	}
	return u, nil
}
