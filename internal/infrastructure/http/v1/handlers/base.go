// Package handlers provides HTTP request handlers.
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stockbridge/internal/core/apperror"
	"stockbridge/internal/core/params"
)

const maxMultipartMemory = 8 << 20

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// HandleError registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Params merges query parameters, form fields and a flat JSON object into one
// parameter set. Later sources win: JSON over form over query.
func (h *BaseHandler) Params(c *gin.Context) (params.Values, error) {
	out := params.Values{}
	for key, vals := range c.Request.URL.Query() {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}

	switch c.ContentType() {
	case gin.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, apperror.NewValidation("invalid form body").WithDetail("error", err.Error())
		}
		mergeForm(out, c.Request.PostForm)
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, apperror.NewValidation("invalid multipart body").WithDetail("error", err.Error())
		}
		mergeForm(out, c.Request.MultipartForm.Value)
	case gin.MIMEJSON:
		raw, err := c.GetRawData()
		if err != nil {
			return nil, apperror.NewValidation("cannot read request body").WithDetail("error", err.Error())
		}
		if err := mergeJSON(out, raw); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mergeForm(out params.Values, form map[string][]string) {
	for key, vals := range form {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
}

// mergeJSON copies the scalar members of a JSON object. Nested values are kept
// as their JSON text; nulls are ignored.
func mergeJSON(out params.Values, raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return apperror.NewValidation("request body must be a flat JSON object").WithDetail("error", err.Error())
	}

	for key, v := range obj {
		switch t := v.(type) {
		case nil:
		case string:
			out[key] = t
		case json.Number:
			out[key] = t.String()
		case bool:
			out[key] = strconv.FormatBool(t)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return apperror.NewValidation("invalid value").WithDetail("field", key)
			}
			out[key] = string(b)
		}
	}
	return nil
}

