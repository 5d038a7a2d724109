package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"github.com/stevemurr/simple-todo-server/model"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 64 << 10

var (
	requestValidate = validator.New()
	queryDecoder    = schema.NewDecoder()
)

func init() {
	_ = requestValidate.RegisterValidation("nonblank", validateNonBlank)
	_ = requestValidate.RegisterValidation("maxbytes", validateMaxBytes)
	queryDecoder.IgnoreUnknownKeys(true)
}

// validateNonBlank rejects strings made only of whitespace.
func validateNonBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateMaxBytes checks byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(strings.TrimSpace(fl.Field().String())) <= model.MaxContentBytes
}

// createRequest is the body of POST /api/todos.
type createRequest struct {
	Content string `json:"content" validate:"required,nonblank,maxbytes"`
}

// updateRequest is the body of PATCH /api/todos/{id}. id and createdAt are
// not accepted.
type updateRequest struct {
	Content *string `json:"content" validate:"omitempty,nonblank,maxbytes"`
	Done    *bool   `json:"done"`
}

func (u updateRequest) patch() model.Patch {
	return model.Patch{Content: u.Content, Done: u.Done}
}

// listQuery holds the raw query string of GET /api/todos. page and limit
// stay strings so the repository can tell "absent" from "invalid".
type listQuery struct {
	Page  string `schema:"page"`
	Limit string `schema:"limit"`
	Query string `schema:"q" validate:"max=200"`
}

func decodeListQuery(r *http.Request) (listQuery, error) {
	var q listQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		return q, fmt.Errorf("invalid query parameters: %w", err)
	}
	if err := requestValidate.Struct(q); err != nil {
		return q, fmt.Errorf("invalid query parameters: %s", describeValidation(err))
	}
	return q, nil
}

// decodeBody reads a strict JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may continue.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil {
		if _, terr := dec.Token(); terr != io.EOF {
			err = errors.New("unexpected data after JSON body")
		}
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "request body too large")
			return false
		}
		h.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON: "+err.Error())
		return false
	}

	if err := requestValidate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrCodeBadRequest, describeValidation(err))
		return false
	}
	return true
}

// describeValidation flattens validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
